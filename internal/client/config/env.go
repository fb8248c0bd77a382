package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "FIELDSYNC_"

// Environment variable names.
const (
	EnvServerURL           = envPrefix + "SERVER_URL"
	EnvDatabasePath        = envPrefix + "DB"
	EnvOnlineCheckInterval = envPrefix + "ONLINE_CHECK_INTERVAL"
	EnvRequestTimeout      = envPrefix + "REQUEST_TIMEOUT"
	EnvProbeTimeout        = envPrefix + "PROBE_TIMEOUT"
	EnvProbeURLs           = envPrefix + "PROBE_URLS"
	EnvNetworkDebounce     = envPrefix + "NETWORK_DEBOUNCE"
	EnvNotifyCooldown      = envPrefix + "NOTIFY_COOLDOWN"
	EnvSyncWorkers         = envPrefix + "SYNC_WORKERS"
	EnvLogLevel            = envPrefix + "LOG_LEVEL"
	EnvLogFormat           = envPrefix + "LOG_FORMAT"
)

// readEnv merges the FIELDSYNC_* entries of the dotenv file with the
// process environment. A missing dotenv file is not an error.
func readEnv(dotenv string) (map[string]string, error) {
	env := make(map[string]string)

	if dotenv != "" {
		fileEnv, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			for k, v := range fileEnv {
				if strings.HasPrefix(k, envPrefix) {
					env[k] = v
				}
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", dotenv, err)
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, envPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

func parseEnv(cfg *Config, env map[string]string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := env[key]
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str(EnvServerURL, &cfg.ServerBaseURL)
	str(EnvDatabasePath, &cfg.DatabasePath)
	dur(EnvOnlineCheckInterval, &cfg.OnlineCheckInterval)
	dur(EnvRequestTimeout, &cfg.RequestTimeout)
	dur(EnvProbeTimeout, &cfg.ProbeTimeout)
	dur(EnvNetworkDebounce, &cfg.NetworkDebounce)
	dur(EnvNotifyCooldown, &cfg.NotifyCooldown)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvLogFormat, &cfg.LogFormat)

	if v := env[EnvProbeURLs]; v != "" {
		cfg.ProbeFallbackURLs = splitList(v)
	}
	if v := env[EnvSyncWorkers]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSyncWorkers, err))
		} else {
			cfg.SyncWorkers = n
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
