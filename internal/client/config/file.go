package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// fileConfig is the on-disk form of Config. Zero values leave the
// corresponding setting untouched.
type fileConfig struct {
	ServerBaseURL       string         `json:"server_base_url" toml:"server_base_url"`
	DatabasePath        string         `json:"database_path" toml:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" toml:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout" toml:"request_timeout"`
	ProbeTimeout        timex.Duration `json:"probe_timeout" toml:"probe_timeout"`
	ProbeFallbackURLs   []string       `json:"probe_fallback_urls" toml:"probe_fallback_urls"`
	NetworkDebounce     timex.Duration `json:"network_debounce" toml:"network_debounce"`
	NotifyCooldown      timex.Duration `json:"notify_cooldown" toml:"notify_cooldown"`
	SyncWorkers         int            `json:"sync_workers" toml:"sync_workers"`
	LogLevel            string         `json:"log_level" toml:"log_level"`
	LogFormat           string         `json:"log_format" toml:"log_format"`
}

// parseFile overlays cfg with the values found in the file at path.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.ServerBaseURL != "" {
		cfg.ServerBaseURL = fc.ServerBaseURL
	}
	if fc.DatabasePath != "" {
		cfg.DatabasePath = fc.DatabasePath
	}
	if fc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.ProbeTimeout.Duration != 0 {
		cfg.ProbeTimeout = fc.ProbeTimeout.Duration
	}
	if fc.ProbeFallbackURLs != nil {
		cfg.ProbeFallbackURLs = fc.ProbeFallbackURLs
	}
	if fc.NetworkDebounce.Duration != 0 {
		cfg.NetworkDebounce = fc.NetworkDebounce.Duration
	}
	if fc.NotifyCooldown.Duration != 0 {
		cfg.NotifyCooldown = fc.NotifyCooldown.Duration
	}
	if fc.SyncWorkers != 0 {
		cfg.SyncWorkers = fc.SyncWorkers
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
}
