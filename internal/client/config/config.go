package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// Config holds runtime settings for the fieldsync client.
type Config struct {
	// ServerBaseURL, when set, replaces the base URL stored on the device.
	ServerBaseURL string
	DatabasePath  string

	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	ProbeTimeout        time.Duration
	// ProbeFallbackURLs are tried when the API itself does not answer, to
	// tell "server down" from "no internet".
	ProbeFallbackURLs []string
	NetworkDebounce   time.Duration
	NotifyCooldown    time.Duration

	SyncWorkers int

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = ""
	c.DatabasePath = "fieldsync.db"
	c.OnlineCheckInterval = 30 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.ProbeTimeout = 5 * time.Second
	c.ProbeFallbackURLs = []string{
		"https://clients3.google.com/generate_204",
		"https://www.cloudflare.com/cdn-cgi/trace",
	}
	c.NetworkDebounce = 2 * time.Second
	c.NotifyCooldown = 10 * time.Second
	c.SyncWorkers = 4
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Load builds a Config from defaults, the environment, an optional config
// file and the flags found in args. Later sources take precedence.
func Load(args []string) (*Config, error) {
	return load(args, DotEnvFile)
}

func load(args []string, dotenv string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	env, err := readEnv(dotenv)
	if err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, env); err != nil {
		return nil, err
	}

	if path := flagx.ConfigFile(args); path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerBaseURL != "" {
		if err := ValidateServerURL(c.ServerBaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database path is empty"))
	}

	for name, d := range map[string]time.Duration{
		"online check interval": c.OnlineCheckInterval,
		"request timeout":       c.RequestTimeout,
		"probe timeout":         c.ProbeTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.NetworkDebounce < 0 || c.NotifyCooldown < 0 {
		errs = append(errs, errors.New("debounce and cooldown must not be negative"))
	}
	if c.SyncWorkers <= 0 {
		errs = append(errs, fmt.Errorf("sync workers must be positive, got %d", c.SyncWorkers))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ValidateServerURL checks that raw is an absolute http(s) URL.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server base url %q: must be an absolute http(s) URL", raw)
	}
	return nil
}
