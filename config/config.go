// Package config provides configuration loading for the fleet ledger tools.
// Supports YAML files, .env files, FLEET_* environment variables and
// command-line overrides applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/warp/fleet-ledger/fleet"
	"github.com/warp/fleet-ledger/invoice"
	"github.com/warp/fleet-ledger/tabular"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLEET_"

// Config holds all configuration.
type Config struct {
	Reconcile ReconcileConfig       `yaml:"reconcile"`
	Columns   fleet.Columns         `yaml:"columns"`
	Feed      invoice.FeedColumns   `yaml:"feed"`
	Ledger    invoice.LedgerOptions `yaml:"ledger"`
	CSV       CSVConfig             `yaml:"csv"`
	Server    ServerConfig          `yaml:"server"`
	Database  DatabaseConfig        `yaml:"database"`
	Log       LogConfig             `yaml:"log"`
}

// ReconcileConfig holds matcher settings.
type ReconcileConfig struct {
	Threshold   int  `yaml:"threshold"`
	ExcludePool bool `yaml:"exclude_pool"`
	Workers     int  `yaml:"workers"`
}

// CSVConfig describes the vendor CSV dialect, for reading and writing.
type CSVConfig struct {
	Encoding  string `yaml:"encoding"`
	Separator string `yaml:"separator"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds run store settings. An empty path disables
// persistence for CLI runs.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file, then .env files, then
// environment overrides, and validates the result. Missing .env files are
// ignored; a missing config file is an error when path is set.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration the fleet team runs with.
func Default() *Config {
	return &Config{
		Reconcile: ReconcileConfig{
			Threshold:   fleet.DefaultThreshold,
			ExcludePool: true,
			Workers:     1,
		},
		Columns: fleet.DefaultColumns(),
		Feed:    invoice.DefaultFeedColumns(),
		Ledger:  invoice.DefaultLedgerOptions(),
		CSV: CSVConfig{
			Encoding:  "latin1",
			Separator: ";",
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Reconcile.Threshold < 0 || c.Reconcile.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", c.Reconcile.Threshold)
	}

	if c.Reconcile.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Reconcile.Workers)
	}

	if utf8.RuneCountInString(c.CSV.Separator) != 1 {
		return fmt.Errorf("csv separator must be a single character, got %q", c.CSV.Separator)
	}

	if err := c.CSVOptions().Validate(); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	if c.Feed.HeaderRows < 0 {
		return fmt.Errorf("feed header_rows must not be negative")
	}

	if c.Ledger.OffsetAccount == "" || c.Ledger.ExpenseAccount == "" {
		return errors.New("ledger offset_account and expense_account are required")
	}

	return nil
}

// FleetOptions returns the reconciliation options.
func (c *Config) FleetOptions() fleet.Options {
	return fleet.Options{
		Threshold:   c.Reconcile.Threshold,
		ExcludePool: c.Reconcile.ExcludePool,
		Workers:     c.Reconcile.Workers,
	}
}

// CSVOptions returns the CSV dialect for vendor files.
func (c *Config) CSVOptions() tabular.CSVOptions {
	sep, _ := utf8.DecodeRuneInString(c.CSV.Separator)
	return tabular.CSVOptions{Separator: sep, Encoding: c.CSV.Encoding}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// loadEnvFiles loads the files that exist. Variables already set in the
// environment are never overwritten.
func loadEnvFiles(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// applyEnvOverrides applies FLEET_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := env("THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTHRESHOLD: %w", EnvPrefix, err)
		}
		cfg.Reconcile.Threshold = n
	}

	if v := env("EXCLUDE_POOL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sEXCLUDE_POOL: %w", EnvPrefix, err)
		}
		cfg.Reconcile.ExcludePool = b
	}

	if v := env("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
		cfg.Reconcile.Workers = n
	}

	if v := env("CSV_ENCODING"); v != "" {
		cfg.CSV.Encoding = v
	}

	if v := env("CSV_SEPARATOR"); v != "" {
		cfg.CSV.Separator = v
	}

	if v := env("OFFSET_ACCOUNT"); v != "" {
		cfg.Ledger.OffsetAccount = v
	}

	if v := env("EXPENSE_ACCOUNT"); v != "" {
		cfg.Ledger.ExpenseAccount = v
	}

	if v := env("SERVER_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_PORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = n
	}

	if v := env("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}

	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}
