// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Event channel drivers.
const (
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

// Consumer acknowledgment modes.
const (
	AckOnReceipt   = "on_receipt"
	AckAfterCommit = "after_commit"
)

// Config holds all application configuration.
// Both the API and the worker process read the same struct.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"5000"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Cache (Redis). Also backs the redis channel driver.
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL for short links
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Comma-separated list of allowed origins; "*" allows any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Event channel
	ChannelDriver string   `env:"CHANNEL_DRIVER" envDefault:"redis"`
	ChannelName   string   `env:"CHANNEL_NAME" envDefault:"clicks_queue"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"kafka:9092"`

	// Producer side
	PublishTimeout time.Duration `env:"ANALYTICS_PUBLISH_TIMEOUT" envDefault:"500ms"`
	DialTimeout    time.Duration `env:"ANALYTICS_DIAL_TIMEOUT" envDefault:"2s"`
	BufferSize     int           `env:"ANALYTICS_BUFFER_SIZE" envDefault:"1024"`
	FailOpen       bool          `env:"ANALYTICS_FAIL_OPEN" envDefault:"true"`

	// Consumer side
	SettleDelay    time.Duration `env:"CONSUMER_SETTLE_DELAY" envDefault:"10s"`
	AckMode        string        `env:"CONSUMER_ACK_MODE" envDefault:"on_receipt"`
	BlockTimeout   time.Duration `env:"CONSUMER_BLOCK_TIMEOUT" envDefault:"5s"`
	ReportSchedule string        `env:"CONSUMER_REPORT_SCHEDULE" envDefault:"@every 30s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.ChannelDriver {
	case DriverRedis:
	case DriverKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka driver")
		}
	default:
		return fmt.Errorf("unknown CHANNEL_DRIVER %q", c.ChannelDriver)
	}

	if c.AckMode != AckOnReceipt && c.AckMode != AckAfterCommit {
		return fmt.Errorf("unknown CONSUMER_ACK_MODE %q", c.AckMode)
	}
	if c.ChannelName == "" {
		return errors.New("CHANNEL_NAME must not be empty")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("ANALYTICS_PUBLISH_TIMEOUT must be positive")
	}
	if c.BufferSize <= 0 {
		return errors.New("ANALYTICS_BUFFER_SIZE must be positive")
	}
	return nil
}

// Load reads an optional .env file, parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	// Values already present in the environment win over the file.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
