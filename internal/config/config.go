// Package config loads the cascade configuration. Values are layered:
// defaults, then an optional YAML file, then CASCADE_* environment
// variables.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/cascadedb/cascade/internal/errors"
	"github.com/cascadedb/cascade/internal/log"
)

// Config is the complete cascade configuration.
type Config struct {
	Log       log.Config      `koanf:"log"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
}

// CatalogConfig selects where table metadata comes from.
type CatalogConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `koanf:"backend"`
	// DSN is the connection string for the postgres backend.
	DSN string `koanf:"dsn"`
}

// OptimizerConfig controls planning behavior.
type OptimizerConfig struct {
	// DisabledRules lists optimization rules to skip, by name.
	DisabledRules []string `koanf:"disabled_rules"`
	// SourceEventsDuplicate declares that upstream sources may deliver
	// the same change event more than once. Planning then retains
	// primary-key columns so downstream operators can deduplicate.
	SourceEventsDuplicate bool `koanf:"source_events_duplicate"`
}

// knownRules are the rule names DisabledRules may reference.
var knownRules = map[string]bool{
	"projection_pushdown":    true,
	"push_project_into_scan": true,
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log:     log.DefaultConfig(),
		Catalog: CatalogConfig{Backend: "memory"},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply.
// Precedence (highest to lowest): env vars > config file > defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log.level":       "info",
		"log.format":      "text",
		"catalog.backend": "memory",
	}, "."), nil); err != nil {
		return nil, errors.InternalErrorf("loading config defaults: %v", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Newf(errors.InvalidParameterValue,
				"reading config file %s: %v", path, err)
		}
	}

	// CASCADE_CATALOG_DSN -> catalog.dsn; a double underscore keeps a
	// literal underscore in the key (CASCADE_OPTIMIZER_DISABLED__RULES)
	if err := k.Load(env.Provider("CASCADE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "CASCADE_"))
		key = strings.ReplaceAll(key, "__", "-")
		key = strings.ReplaceAll(key, "_", ".")
		return strings.ReplaceAll(key, "-", "_")
	}), nil); err != nil {
		return nil, errors.InternalErrorf("loading environment: %v", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Newf(errors.InvalidParameterValue, "decoding config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Catalog.Backend {
	case "memory":
	case "postgres":
		if c.Catalog.DSN == "" {
			return errors.Newf(errors.InvalidParameterValue,
				"catalog backend %q requires a dsn", c.Catalog.Backend)
		}
	default:
		return errors.Newf(errors.InvalidParameterValue,
			"unknown catalog backend %q", c.Catalog.Backend)
	}
	for _, rule := range c.Optimizer.DisabledRules {
		if !knownRules[rule] {
			return errors.Newf(errors.InvalidParameterValue,
				"unknown optimization rule %q", rule).
				WithHint("valid rules are projection_pushdown and push_project_into_scan")
		}
	}
	return nil
}
