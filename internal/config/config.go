package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
		Mode string `yaml:"mode" env:"SERVER_MODE"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret" env:"JWT_SECRET"`
		Issuer string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`

	RateLimit struct {
		Requests int    `yaml:"requests" env:"RATE_LIMIT_REQUESTS"`
		Window   string `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	} `yaml:"rate_limit"`

	Cache struct {
		CandidatesTTL string `yaml:"candidates_ttl" env:"CACHE_CANDIDATES_TTL"`
	} `yaml:"cache"`

	Metrics struct {
		Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
	} `yaml:"metrics"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// A missing file is fine, defaults and environment still apply
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := processStructFields(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "admissions"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"

	config.JWT.Issuer = "admissions.app"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Redis.Addr = "localhost:6379"

	config.RateLimit.Requests = 30
	config.RateLimit.Window = "1m"

	config.Cache.CandidatesTTL = "30s"

	config.Metrics.Enabled = true
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid database connection lifetime: %w", err)
	}

	if _, err := time.ParseDuration(config.RateLimit.Window); err != nil {
		return fmt.Errorf("invalid rate limit window: %w", err)
	}
	if config.RateLimit.Requests < 0 {
		return fmt.Errorf("rate limit requests cannot be negative")
	}

	if _, err := time.ParseDuration(config.Cache.CandidatesTTL); err != nil {
		return fmt.Errorf("invalid candidates cache ttl: %w", err)
	}

	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// RateLimitWindow returns the parsed limiter window. The value is validated on load.
func (c *Config) RateLimitWindow() time.Duration {
	d, _ := time.ParseDuration(c.RateLimit.Window)
	return d
}

// CandidatesTTL returns the parsed candidate cache lifetime. The value is validated on load.
func (c *Config) CandidatesTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.CandidatesTTL)
	return d
}
