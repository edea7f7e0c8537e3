package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "9400", cfg.Server.Port)
	assert.Equal(t, 256, cfg.Server.MaxConns)
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.ProbeInterval)
	assert.Equal(t, "workspaced", cfg.Install.DesktopID)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.NotEmpty(t, cfg.Storage.Exclude)
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
host = "0.0.0.0"
port = "7000"
read_timeout = "45s"

[storage]
exclude = ["**/cache/**"]

[rate_limit]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// Environment outranks the file.
	t.Setenv("WORKSPACED_SERVER_PORT", "7100")
	t.Setenv("WORKSPACED_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "file overrides default")
	assert.Equal(t, "7100", cfg.Server.Port, "env overrides file")
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout, "untouched default survives")
	assert.Equal(t, []string{"**/cache/**"}, cfg.Storage.Exclude)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("WORKSPACED_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))

	cfg, err := Load("")
	require.NoError(t, err, "absent file at the default path is not an error")
	assert.Equal(t, "9400", cfg.Server.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err, "absent file at an explicit path is an error")
}

func TestLoadInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nread_timeout = \"soon\"\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"empty port", func(c *Config) { c.Server.Port = "" }, true},
		{"zero max conns", func(c *Config) { c.Server.MaxConns = 0 }, true},
		{"rate limit enabled without rps", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, true},
		{"rate limit disabled without rps", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.RequestsPerSecond = 0
		}, false},
		{"zero restart backoff", func(c *Config) { c.Agent.RestartBackoff = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeCascadesDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[agent]\ndata_dir = \"/srv/workspaced\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/srv/workspaced", "releases"), cfg.Agent.ReleasesDir)
	assert.Equal(t, filepath.Join("/srv/workspaced", "workspace"), cfg.Storage.Root)
}
