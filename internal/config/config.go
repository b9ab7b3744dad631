// Package config resolves process defaults from the environment. An optional
// .env file in the working directory is loaded first; real environment
// variables win over it.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	// EnvDB overrides the default database path.
	EnvDB = "CFIND_DB"
	// EnvLogLevel selects the log level (debug, info, warn, error). It's read
	// by the logging package; listed here so Load picks it up from .env.
	EnvLogLevel = "LOG_LEVEL"
)

// DefaultDBPath is the fallback database path when neither flag nor
// environment names one.
const DefaultDBPath = "cf.db"

// Config holds resolved defaults. CLI flags override these.
type Config struct {
	DBPath string
}

// Load reads .env (if present) and the environment.
func Load() Config {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	cfg := Config{DBPath: DefaultDBPath}
	if v := os.Getenv(EnvDB); v != "" {
		cfg.DBPath = v
	}
	return cfg
}
