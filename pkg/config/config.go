// Package config loads and validates the rollup engine configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultTimezone is the location used for day windows when none
	// is configured.
	DefaultTimezone = "UTC"

	// DefaultConcurrency is the number of rollup units computed in
	// parallel when no explicit value is configured.
	DefaultConcurrency = 4

	// DefaultSQLitePath is the default sqlite database file.
	DefaultSQLitePath = "./rollup.db"
)

// DefaultClosedStatuses is the default set of issue statuses treated
// as closed. Matching against source statuses is case-sensitive.
var DefaultClosedStatuses = []string{"Closed", "Done", "Resolved"}

// Config is the root configuration for the rollup engine.
type Config struct {
	LogLevel string         `yaml:"log_level" mapstructure:"log_level"`
	Timezone string         `yaml:"timezone" mapstructure:"timezone"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Rollup   RollupConfig   `yaml:"rollup" mapstructure:"rollup"`
}

// DatabaseConfig selects and configures the database driver.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// SQLiteConfig contains sqlite settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// RollupConfig contains rollup batch settings.
type RollupConfig struct {
	Concurrency     int      `yaml:"concurrency" mapstructure:"concurrency"`
	ContinueOnError bool     `yaml:"continue_on_error" mapstructure:"continue_on_error"`
	ClosedStatuses  []string `yaml:"closed_statuses" mapstructure:"closed_statuses"`
}

// Load reads a configuration file, applies ROLLUP_-prefixed
// environment overrides, and fills in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ROLLUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified options.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}

	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}

	if c.Rollup.Concurrency == 0 {
		c.Rollup.Concurrency = DefaultConcurrency
	}

	if c.Rollup.ClosedStatuses == nil {
		c.Rollup.ClosedStatuses = DefaultClosedStatuses
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
	}

	if c.Rollup.Concurrency < 1 {
		return fmt.Errorf("rollup concurrency must be at least 1")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// Location returns the configured time location. Call Validate first;
// an invalid timezone falls back to UTC here.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
