/*
Package config loads server configuration.

PRECEDENCE (later wins):
  1. Built-in defaults (Default)
  2. .env file, loaded with godotenv; never overrides variables already set
  3. Environment variables
  4. Command-line flags (RegisterFlags)

ENVIRONMENT:
  MESS_PORT                     HTTP port (8080)
  MESS_DB_PATH                  SQLite path, ":memory:" allowed (mess.db)
  MESS_DEFAULT_PROVISION_RATE   Provision rate used when a month has none (25.00)
  MESS_DEFAULT_ADVANCE_RATE     Advance rate used when a month has none (18.75)
  MESS_USE_DEFAULT_RATES        "false" makes missing rates an error (true)
  MESS_CORS_ORIGINS             Comma separated allowed origins (*)
  MESS_DRAFT_INTERVAL           Draft refresh interval, "0" disables (1h)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hostel/mess-engine/billing"
)

const (
	EnvPort          = "MESS_PORT"
	EnvDBPath        = "MESS_DB_PATH"
	EnvProvisionRate = "MESS_DEFAULT_PROVISION_RATE"
	EnvAdvanceRate   = "MESS_DEFAULT_ADVANCE_RATE"
	EnvUseDefaults   = "MESS_USE_DEFAULT_RATES"
	EnvCORSOrigins   = "MESS_CORS_ORIGINS"
	EnvDraftInterval = "MESS_DRAFT_INTERVAL"
)

// Config is everything the server needs at startup.
type Config struct {
	Port        int
	DBPath      string
	CORSOrigins []string
	Rates       billing.Defaults

	// DraftInterval is how often draft bills are refreshed. Zero disables it.
	DraftInterval time.Duration
}

func Default() Config {
	return Config{
		Port:        8080,
		DBPath:      "mess.db",
		CORSOrigins: []string{"*"},
		Rates:       billing.DefaultRateOptions(),

		DraftInterval: time.Hour,
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. Missing files are skipped.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv applies environment overrides to Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvPort); ok {
		port, err := parsePort(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if v, ok := lookup(EnvDBPath); ok && strings.TrimSpace(v) != "" {
		cfg.DBPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvProvisionRate); ok {
		rate, err := billing.ParseRate(EnvProvisionRate, v)
		if err != nil {
			return Config{}, err
		}
		cfg.Rates.DefaultProvisionRate = rate
	}
	if v, ok := lookup(EnvAdvanceRate); ok {
		rate, err := billing.ParseRate(EnvAdvanceRate, v)
		if err != nil {
			return Config{}, err
		}
		cfg.Rates.DefaultAdvanceRate = rate
	}
	if v, ok := lookup(EnvUseDefaults); ok {
		use, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvUseDefaults, err)
		}
		cfg.Rates.UseDefaultsWhenMissing = use
	}
	if v, ok := lookup(EnvCORSOrigins); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if v, ok := lookup(EnvDraftInterval); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%s: invalid duration %q", EnvDraftInterval, v)
		}
		cfg.DraftInterval = d
	}
	return cfg, nil
}

// RegisterFlags binds flags to c. Current values become the flag defaults,
// so call it after Load and before flag.Parse.
func (c *Config) RegisterFlags(fset *flag.FlagSet) {
	fset.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fset.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fset.Func("provision-rate", "default provision rate per day (current "+c.Rates.DefaultProvisionRate.StringFixed(2)+")", func(s string) error {
		rate, err := billing.ParseRate("provision-rate", s)
		if err != nil {
			return err
		}
		c.Rates.DefaultProvisionRate = rate
		return nil
	})
	fset.Func("advance-rate", "default advance rate per day (current "+c.Rates.DefaultAdvanceRate.StringFixed(2)+")", func(s string) error {
		rate, err := billing.ParseRate("advance-rate", s)
		if err != nil {
			return err
		}
		c.Rates.DefaultAdvanceRate = rate
		return nil
	})
	fset.BoolVar(&c.Rates.UseDefaultsWhenMissing, "use-default-rates", c.Rates.UseDefaultsWhenMissing, "substitute default rates when a month has none")
	fset.DurationVar(&c.DraftInterval, "draft-interval", c.DraftInterval, "draft refresh interval, 0 disables")
	fset.Func("cors-origins", "comma separated allowed origins", func(s string) error {
		c.CORSOrigins = splitList(s)
		return nil
	})
}

func parsePort(v string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s: invalid port %q", EnvPort, v)
	}
	return port, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
