// Package config reads runtime settings from FQL_* environment variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. FQL_LOG_LEVEL.
const Prefix = "FQL"

// Config holds the runtime settings. CLI flags override these values.
type Config struct {
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`
	DBPath     string `envconfig:"DB_PATH" default:"fql.db"`
	CatalogDir string `envconfig:"CATALOG_DIR" default:"catalog"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %w", err)
	}

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("unable to parse configuration: FQL_LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	return cfg, nil
}
