package syncagent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the agent process configuration. The supervising daemon
// passes every field through SYNCAGENT_* environment variables when it
// launches a release.
type Config struct {
	BridgeURL        string        `split_words:"true"`
	DataDir          string        `split_words:"true"`
	UpstreamURL      string        `split_words:"true"`
	Version          string
	ReconnectBackoff time.Duration `split_words:"true"`
	RequestTimeout   time.Duration `split_words:"true"`
}

// LoadConfig reads configuration from the environment and fills
// defaults for anything the supervisor left unset.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("syncagent", &cfg); err != nil {
		return Config{}, fmt.Errorf("agent config: %w", err)
	}

	if cfg.BridgeURL == "" {
		return Config{}, fmt.Errorf("agent config: bridge URL is required")
	}
	if cfg.DataDir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("agent config: no data dir and home unresolvable: %w", err)
		}
		cfg.DataDir = filepath.Join(h, ".workspaced")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 2 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return cfg, nil
}
