package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Values come from an optional
// YAML file; command-line flags may override individual fields after
// loading.
type Config struct {
	Server struct {
		Addr           string   `yaml:"addr"`
		StaticDir      string   `yaml:"static_dir"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		RateLimit      int      `yaml:"rate_limit"` // requests per window per client
		RateWindowSec  int      `yaml:"rate_window_sec"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Ledger struct {
		ReferenceSymbol string `yaml:"reference_symbol"`
		ReferenceName   string `yaml:"reference_name"`
		StartingGrant   string `yaml:"starting_grant"`
	} `yaml:"ledger"`

	Market struct {
		ChartPoints int `yaml:"chart_points"`
	} `yaml:"market"`
}

// Default returns the settings used when no config file is given.
func Default() Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.RateLimit = 120
	cfg.Server.RateWindowSec = 60
	cfg.Database.Path = "tokenmart.db"
	cfg.Ledger.ReferenceSymbol = "INF"
	cfg.Ledger.ReferenceName = "Infra Credit"
	cfg.Ledger.StartingGrant = "1000"
	cfg.Market.ChartPoints = 24
	return cfg
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateWindowSec <= 0 {
		return fmt.Errorf("rate limit and window must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Ledger.ReferenceSymbol == "" {
		return fmt.Errorf("reference symbol is required")
	}
	grant, err := decimal.NewFromString(c.Ledger.StartingGrant)
	if err != nil {
		return fmt.Errorf("starting grant %q is not a number", c.Ledger.StartingGrant)
	}
	if grant.IsNegative() {
		return fmt.Errorf("starting grant must not be negative")
	}
	if c.Market.ChartPoints <= 0 {
		return fmt.Errorf("chart points must be positive")
	}
	return nil
}
