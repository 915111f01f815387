// Package config loads runtime configuration for the microblog service.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file named by MICROBLOG_CONFIG_FILE, and finally MICROBLOG_* environment
// variables (a .env file in the working directory is loaded first when
// present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Media     MediaConfig     `yaml:"media"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"MICROBLOG_HOST"`
	Port            int           `yaml:"port" env:"MICROBLOG_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"MICROBLOG_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"MICROBLOG_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"MICROBLOG_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"MICROBLOG_SHUTDOWN_TIMEOUT"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the persistence backend. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"MICROBLOG_DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MICROBLOG_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MICROBLOG_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"MICROBLOG_DB_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"MICROBLOG_AUTO_MIGRATE"`
	Seed            bool          `yaml:"seed" env:"MICROBLOG_SEED"`
}

// RedisConfig enables the api-key cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"MICROBLOG_REDIS_ADDR"`
	Password string        `yaml:"password" env:"MICROBLOG_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"MICROBLOG_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"MICROBLOG_REDIS_TTL"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"MICROBLOG_LOG_LEVEL"`
	Format     string `yaml:"format" env:"MICROBLOG_LOG_FORMAT"`
	Output     string `yaml:"output" env:"MICROBLOG_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"MICROBLOG_LOG_FILE_PREFIX"`
}

// MediaConfig controls uploads.
type MediaConfig struct {
	UploadsDir      string        `yaml:"uploads_dir" env:"MICROBLOG_UPLOADS_DIR"`
	MaxFileSize     int64         `yaml:"max_file_size" env:"MICROBLOG_MAX_FILE_SIZE"`
	JanitorSchedule string        `yaml:"janitor_schedule" env:"MICROBLOG_MEDIA_JANITOR_SCHEDULE"`
	OrphanTTL       time.Duration `yaml:"orphan_ttl" env:"MICROBLOG_MEDIA_ORPHAN_TTL"`
}

// RateLimitConfig throttles callers per api key. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   int `yaml:"rps" env:"MICROBLOG_RATE_LIMIT_RPS"`
	Burst int `yaml:"burst" env:"MICROBLOG_RATE_LIMIT_BURST"`
}

// CORSConfig lists allowed origins; "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"MICROBLOG_CORS_ORIGINS"`
}

// Default returns the built-in configuration: listen on 0.0.0.0:8000 with the
// in-memory store.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
			Seed:            true,
		},
		Redis: RedisConfig{TTL: 5 * time.Minute},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Media: MediaConfig{
			UploadsDir:      "uploads",
			MaxFileSize:     5 * 1024 * 1024,
			JanitorSchedule: "@every 1h",
			OrphanTTL:       24 * time.Hour,
		},
		RateLimit: RateLimitConfig{RPS: 0, Burst: 20},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load resolves configuration from defaults, the optional YAML file and the
// environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("MICROBLOG_CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file on top of the defaults without consulting
// the environment.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Host) == "" {
		return errors.New("server host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	if c.Media.MaxFileSize <= 0 {
		return errors.New("media max file size must be positive")
	}
	if strings.TrimSpace(c.Media.UploadsDir) == "" {
		return errors.New("media uploads dir is required")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("database pool sizes must not be negative")
	}
	return nil
}
