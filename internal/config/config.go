// Package config loads the person service configuration from an optional YAML
// file followed by PERSON_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/person_service/pkg/logger"
)

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"PERSON_SERVER_HOST"`
	Port            int           `yaml:"port" env:"PERSON_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"PERSON_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"PERSON_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PERSON_SERVER_SHUTDOWN_TIMEOUT"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"PERSON_DATABASE_DRIVER"`
	DSN             string        `yaml:"dsn" env:"PERSON_DATABASE_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PERSON_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PERSON_DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PERSON_DATABASE_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PERSON_DATABASE_CONN_MAX_IDLE_TIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"PERSON_DATABASE_AUTO_MIGRATE"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"PERSON_LOG_LEVEL"`
	Format     string `yaml:"format" env:"PERSON_LOG_FORMAT"`
	Output     string `yaml:"output" env:"PERSON_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"PERSON_LOG_FILE_PREFIX"`
}

// Logger converts the section into logger settings.
func (l LoggingConfig) Logger() logger.LoggingConfig {
	return logger.LoggingConfig{Level: l.Level, Format: l.Format, Output: l.Output, FilePrefix: l.FilePrefix}
}

type HTTPConfig struct {
	// CORSOrigins lists allowed origins; "*" allows all, empty disables CORS.
	CORSOrigins []string        `yaml:"cors_origins" env:"PERSON_HTTP_CORS_ORIGINS"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" env:"PERSON_RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"PERSON_RATE_LIMIT_RPS"`
	Burst             int           `yaml:"burst" env:"PERSON_RATE_LIMIT_BURST"`
	IdleTTL           time.Duration `yaml:"idle_ttl" env:"PERSON_RATE_LIMIT_IDLE_TTL"`
	CleanupSchedule   string        `yaml:"cleanup_schedule" env:"PERSON_RATE_LIMIT_CLEANUP_SCHEDULE"`
}

// Default returns a configuration that runs against the in-memory store.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		HTTP: HTTPConfig{
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				Burst:             100,
				IdleTTL:           10 * time.Minute,
				CleanupSchedule:   "@every 1m",
			},
		},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverPGX:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if rl := c.HTTP.RateLimit; rl.Enabled && (rl.RequestsPerSecond <= 0 || rl.Burst <= 0) {
		return fmt.Errorf("http.rate_limit requires positive requests_per_second and burst")
	}
	return nil
}
