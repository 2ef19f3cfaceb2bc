package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Tree     TreeConfig
	Log      LogConfig
	Seed     SeedConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/workspace-tree.db"`
}

// TreeConfig holds the settings shared by the tree engine and the backend.
type TreeConfig struct {
	BaseURL     string        `env:"TREE_BASE_URL" envDefault:"http://localhost:8080"`
	TypeTable   string        `env:"TREE_TYPE_TABLE"` // JSON file overriding the built-in table
	HTTPTimeout time.Duration `env:"TREE_HTTP_TIMEOUT" envDefault:"15s"`
	Fixture     string        `env:"TREE_FIXTURE"` // JSON fixture served instead of the REST backend
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
	File   string `env:"LOG_FILE"`
}

// SeedConfig controls demo data for the reference backend.
type SeedConfig struct {
	Demo bool `env:"SEED_DEMO" envDefault:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Tree); err != nil {
		return nil, fmt.Errorf("parsing tree config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}
	if err := env.Parse(&cfg.Seed); err != nil {
		return nil, fmt.Errorf("parsing seed config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	u, err := url.Parse(c.Tree.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TREE_BASE_URL must be an absolute http(s) URL, got %q", c.Tree.BaseURL)
	}
	if c.Tree.HTTPTimeout <= 0 {
		return fmt.Errorf("TREE_HTTP_TIMEOUT must be positive")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.Log.Format)
	}

	return nil
}

// UseFixture returns true if a JSON fixture replaces the REST backend.
func (c *Config) UseFixture() bool {
	return c.Tree.Fixture != ""
}
