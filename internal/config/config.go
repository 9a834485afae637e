package config

import (
	"fmt"
	"time"

	"github.com/aescanero/lslrelay/pkg/stream"
	"github.com/caarlos0/env/v10"
)

// Transport names
const (
	TransportRedis  = "redis"
	TransportMemory = "memory"
)

// Config holds all configuration for the marker relay
type Config struct {
	// Server configuration
	HTTPPort int    `env:"RELAY_HTTP_PORT" envDefault:"5000"`
	GRPCPort int    `env:"RELAY_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Transport selects the stream backend: redis or memory
	Transport string `env:"TRANSPORT" envDefault:"redis"`

	// Stream descriptor of the relay outlet
	Stream StreamConfig

	// Redis configuration
	Redis RedisConfig

	// Announcer configuration
	Announcer AnnouncerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// StreamConfig describes the outlet the relay publishes on
type StreamConfig struct {
	Name     string `env:"STREAM_NAME" envDefault:"markers"`
	Type     string `env:"STREAM_TYPE" envDefault:"markers"`
	SourceID string `env:"STREAM_SOURCE_ID" envDefault:"ws-flask-markers"`
}

// Descriptor returns the relay's marker stream: one string channel at an
// irregular rate.
func (s StreamConfig) Descriptor() (stream.Descriptor, error) {
	return stream.NewDescriptor(s.Name, s.Type, 1, stream.IrregularRate, stream.FormatString, s.SourceID)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// Stream settings
	KeyPrefix    string        `env:"REDIS_KEY_PREFIX" envDefault:"lsl"`
	StreamMaxLen int64         `env:"REDIS_STREAM_MAXLEN" envDefault:"10000"`
	BlockTimeout time.Duration `env:"REDIS_BLOCK_TIMEOUT" envDefault:"1s"`
}

// AnnouncerConfig controls descriptor refresh for discovery
type AnnouncerConfig struct {
	Interval time.Duration `env:"ANNOUNCE_INTERVAL" envDefault:"10s"`
	TTL      time.Duration `env:"ANNOUNCE_TTL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate transport
	switch c.Transport {
	case TransportRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
		if c.Redis.StreamMaxLen < 0 {
			return fmt.Errorf("redis stream maxlen must not be negative")
		}
	case TransportMemory:
	default:
		return fmt.Errorf("unsupported transport: %s (must be redis or memory)", c.Transport)
	}

	// Validate stream
	if c.Stream.Name == "" {
		return fmt.Errorf("stream name is required")
	}
	if c.Stream.SourceID == "" {
		return fmt.Errorf("stream source id is required")
	}

	// Validate announcer
	if c.Announcer.Interval <= 0 {
		return fmt.Errorf("announce interval must be positive")
	}
	if c.Announcer.TTL < c.Announcer.Interval {
		return fmt.Errorf("announce TTL (%s) must not be shorter than the interval (%s)", c.Announcer.TTL, c.Announcer.Interval)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
