package config

import (
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to keep the
// TOML surface human-friendly. Bools are pointers so an absent key can be
// told apart from an explicit false.
type fileConfig struct {
	Server struct {
		Host            string `toml:"host"`
		Port            string `toml:"port"`
		MaxConns        int    `toml:"max_conns"`
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		ShutdownTimeout string `toml:"shutdown_timeout"`
	} `toml:"server"`
	Upstream struct {
		BaseURL       string `toml:"base_url"`
		ProbePath     string `toml:"probe_path"`
		ProbeInterval string `toml:"probe_interval"`
		ProbeTimeout  string `toml:"probe_timeout"`
	} `toml:"upstream"`
	Agent struct {
		Binary         string `toml:"binary"`
		DataDir        string `toml:"data_dir"`
		ReleasesDir    string `toml:"releases_dir"`
		RestartBackoff string `toml:"restart_backoff"`
		UpdateURL      string `toml:"update_url"`
		UpdateInterval string `toml:"update_interval"`
	} `toml:"agent"`
	Install struct {
		ApplicationsDir string `toml:"applications_dir"`
		DesktopID       string `toml:"desktop_id"`
		Name            string `toml:"name"`
		Exec            string `toml:"exec"`
	} `toml:"install"`
	Storage struct {
		Root       string   `toml:"root"`
		Exclude    []string `toml:"exclude"`
		QuotaBytes int64    `toml:"quota_bytes"`
	} `toml:"storage"`
	Logging struct {
		Level       string `toml:"level"`
		Development *bool  `toml:"development"`
	} `toml:"logging"`
	RateLimit struct {
		RequestsPerSecond int   `toml:"requests_per_second"`
		Burst             int   `toml:"burst"`
		Enabled           *bool `toml:"enabled"`
	} `toml:"rate_limit"`
}

// applyFile overlays values from the TOML file at path onto cfg. Zero
// values in the file leave the existing configuration untouched.
func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := toml.Unmarshal(b, &fc); err != nil {
		return err
	}
	return overlay(cfg, fc)
}

func overlay(cfg *Config, fc fileConfig) error {
	setString(&cfg.Server.Host, fc.Server.Host)
	setString(&cfg.Server.Port, fc.Server.Port)
	setInt(&cfg.Server.MaxConns, fc.Server.MaxConns)
	if err := setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout); err != nil {
		return err
	}

	setString(&cfg.Upstream.BaseURL, fc.Upstream.BaseURL)
	setString(&cfg.Upstream.ProbePath, fc.Upstream.ProbePath)
	if err := setDuration(&cfg.Upstream.ProbeInterval, fc.Upstream.ProbeInterval); err != nil {
		return err
	}
	if err := setDuration(&cfg.Upstream.ProbeTimeout, fc.Upstream.ProbeTimeout); err != nil {
		return err
	}

	setString(&cfg.Agent.Binary, fc.Agent.Binary)
	setString(&cfg.Agent.DataDir, fc.Agent.DataDir)
	setString(&cfg.Agent.ReleasesDir, fc.Agent.ReleasesDir)
	if err := setDuration(&cfg.Agent.RestartBackoff, fc.Agent.RestartBackoff); err != nil {
		return err
	}
	setString(&cfg.Agent.UpdateURL, fc.Agent.UpdateURL)
	if err := setDuration(&cfg.Agent.UpdateInterval, fc.Agent.UpdateInterval); err != nil {
		return err
	}

	setString(&cfg.Install.ApplicationsDir, fc.Install.ApplicationsDir)
	setString(&cfg.Install.DesktopID, fc.Install.DesktopID)
	setString(&cfg.Install.Name, fc.Install.Name)
	setString(&cfg.Install.Exec, fc.Install.Exec)

	setString(&cfg.Storage.Root, fc.Storage.Root)
	if len(fc.Storage.Exclude) > 0 {
		cfg.Storage.Exclude = fc.Storage.Exclude
	}
	setInt64(&cfg.Storage.QuotaBytes, fc.Storage.QuotaBytes)

	setString(&cfg.Logging.Level, fc.Logging.Level)
	setBool(&cfg.Logging.Development, fc.Logging.Development)

	setInt(&cfg.RateLimit.RequestsPerSecond, fc.RateLimit.RequestsPerSecond)
	setInt(&cfg.RateLimit.Burst, fc.RateLimit.Burst)
	setBool(&cfg.RateLimit.Enabled, fc.RateLimit.Enabled)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
