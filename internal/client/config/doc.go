// Package config loads runtime configuration for the fieldsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory and FIELDSYNC_* environment
//     variables; real environment variables win over the file.
//  3. Optional config file selected via -c or --config. Files ending in
//     .toml are read as TOML, anything else as JSON.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a, --server string    base URL of the back office API
//	-i, --interval int     online status check interval (seconds)
//	--db string            path of the local SQLite database
//	--log-level string     debug, info, warn or error
//
// # File schema
//
// Intervals use timex.Duration, so values can be either strings like "30s"
// or, in JSON, integer nanoseconds:
//
//	server_base_url = "https://backoffice.example.com/"
//	database_path = "fieldsync.db"
//	online_check_interval = "30s"
//	probe_fallback_urls = ["https://clients3.google.com/generate_204"]
package config
