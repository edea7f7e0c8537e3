package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/paths"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Agent     AgentConfig
	Install   InstallConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig `split_words:"true"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	MaxConns        int           `split_words:"true"`
	ReadTimeout     time.Duration `split_words:"true"`
	WriteTimeout    time.Duration `split_words:"true"`
	ShutdownTimeout time.Duration `split_words:"true"`
}

// UpstreamConfig holds the workflow platform endpoint used for
// connectivity probes and deferred action replay.
type UpstreamConfig struct {
	BaseURL       string        `split_words:"true"`
	ProbePath     string        `split_words:"true"`
	ProbeInterval time.Duration `split_words:"true"`
	ProbeTimeout  time.Duration `split_words:"true"`
}

// AgentConfig holds sync agent supervision configuration.
type AgentConfig struct {
	Binary         string
	DataDir        string        `split_words:"true"`
	ReleasesDir    string        `split_words:"true"`
	RestartBackoff time.Duration `split_words:"true"`
	UpdateURL      string        `split_words:"true"`
	UpdateInterval time.Duration `split_words:"true"`
}

// InstallConfig holds desktop integration configuration.
type InstallConfig struct {
	ApplicationsDir string `split_words:"true"`
	DesktopID       string `split_words:"true"`
	Name            string
	Exec            string
}

// StorageConfig holds workspace storage configuration.
type StorageConfig struct {
	Root       string
	Exclude    []string
	QuotaBytes int64 `split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	Development bool
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int `split_words:"true"`
	Burst             int
	Enabled           bool
}

// Default returns default configuration. The data directory defaults to
// ~/.workspaced when the home directory is resolvable.
func Default() *Config {
	dataDir := ""
	if h, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(h, ".workspaced")
	}
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            "9400",
			MaxConns:        256,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:       "http://localhost:8000",
			ProbePath:     "/health",
			ProbeInterval: 30 * time.Second,
			ProbeTimeout:  5 * time.Second,
		},
		Agent: AgentConfig{
			DataDir:        dataDir,
			RestartBackoff: 2 * time.Second,
			UpdateInterval: 6 * time.Hour,
		},
		Install: InstallConfig{
			DesktopID: "workspaced",
			Name:      "Workspace",
		},
		Storage: StorageConfig{
			Exclude: []string{"**/tmp/**", "**/*.partial"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Load builds configuration in three layers: defaults, then the TOML file
// at path (or the default path when path is empty), then WORKSPACED_*
// environment variables. A missing file at the default path is not an
// error; a missing file at an explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process("workspaced", cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or returns defaults on failure.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.normalize()
	}
	return cfg
}

// DefaultPath returns the default configuration file path,
// ~/.workspaced/config.toml, or empty when home is unresolvable.
func DefaultPath() string {
	if v := os.Getenv("WORKSPACED_CONFIG"); v != "" {
		return v
	}
	if h, err := os.UserHomeDir(); err == nil {
		return paths.New(filepath.Join(h, ".workspaced")).ConfigFile()
	}
	return ""
}

// Validate checks configuration invariants after layering.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("server max conns must be positive, got %d", c.Server.MaxConns)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit rps and burst must be positive when enabled")
		}
	}
	if c.Agent.RestartBackoff <= 0 {
		return fmt.Errorf("agent restart backoff must be positive, got %s", c.Agent.RestartBackoff)
	}
	return nil
}

// normalize fills derived paths so overrides of DataDir cascade.
func (c *Config) normalize() {
	if c.Agent.DataDir == "" {
		return
	}
	layout := paths.New(c.Agent.DataDir)
	if c.Agent.ReleasesDir == "" {
		c.Agent.ReleasesDir = layout.Releases()
	}
	if c.Storage.Root == "" {
		c.Storage.Root = layout.Workspace()
	}
}
