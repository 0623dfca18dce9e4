// Package config loads the seedsync CLI configuration from seedsync.yml
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the seedsync configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Fixtures FixturesConfig `mapstructure:"fixtures"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// FixturesConfig represents fixture file configuration
type FixturesConfig struct {
	Paths []string `mapstructure:"paths"`
}

// Load loads the configuration from seedsync.yml or seedsync.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("fixtures.paths", []string{"fixtures"})

	v.SetConfigName("seedsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetDSN returns the database DSN from the environment or config
func (c *Config) GetDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return c.Database.DSN
}

func validateConfig(c *Config) error {
	switch c.Database.Driver {
	case "sqlite3", "pgx":
		return nil
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
}
