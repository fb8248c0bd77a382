package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

// Flags are the command-line spellings parseFlags understands. The CLI
// declares the same names so both parsers accept them.
var Flags = []string{
	"-a", "--a", "-server", "--server",
	"-i", "--i", "-interval", "--interval",
	"-db", "--db",
	"-log-level", "--log-level",
}

// parseFlags populates selected Config fields from command-line flags.
//
// Only the flags listed in Flags are looked at; everything else in args is
// filtered out with flagx.FilterArgs so subcommands and their flags do not
// interfere.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("fieldsync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the back office API")
	fs.StringVar(&cfg.ServerBaseURL, "server", cfg.ServerBaseURL, "base URL of the back office API")
	var seconds int
	fs.IntVar(&seconds, "i", 0, "online check interval (in seconds)")
	fs.IntVar(&seconds, "interval", 0, "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path of the local database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, Flags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" || f.Name == "interval" {
			cfg.OnlineCheckInterval = time.Duration(seconds) * time.Second
		}
	})
	return nil
}
