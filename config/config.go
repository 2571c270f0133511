// Package config loads the engine configuration from a YAML file with
// environment-variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Locking  LockingConfig  `yaml:"locking"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the operational endpoint settings (metrics, health).
type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                   string `yaml:"host"`
	Port                   string `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	DBName                 string `yaml:"dbname"`
	SSLMode                string `yaml:"sslmode"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// KafkaConfig holds the domain event publisher settings. Disabled means
// the engine runs without event emission.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
}

// LockingConfig bounds resource lock acquisition.
type LockingConfig struct {
	AcquireTimeoutMillis int `yaml:"acquire_timeout_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AcquireTimeout returns the lock acquisition bound as a duration.
func (c LockingConfig) AcquireTimeout() time.Duration {
	if c.AcquireTimeoutMillis <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.AcquireTimeoutMillis) * time.Millisecond
}

// Load reads the configuration file named by CONFIG_PATH (default
// config.yaml) and applies environment overrides.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	cfg := &Config{
		Server:   ServerConfig{MetricsPort: 9100},
		Database: DatabaseConfig{Host: "localhost", Port: "5432", User: "postgres", DBName: "fieldservice", SSLMode: "disable"},
		Locking:  LockingConfig{AcquireTimeoutMillis: 3000},
		Log:      LogConfig{Level: "info"},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// No file is fine: defaults plus env overrides apply.
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
