// Package bootstrap wires configuration into loggers and stream transports
// for the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aescanero/lslrelay/internal/config"
	"github.com/aescanero/lslrelay/pkg/adapters/transport/memory"
	redistransport "github.com/aescanero/lslrelay/pkg/adapters/transport/redis"
	"github.com/aescanero/lslrelay/pkg/stream"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Outlet is a stream outlet that can refresh its discovery entry
type Outlet interface {
	stream.Outlet
	Announce(ctx context.Context) error
}

// Transport is the configured stream backend
type Transport interface {
	stream.Resolver
	NewOutlet(ctx context.Context, desc stream.Descriptor) (Outlet, error)
	NewInlet(ctx context.Context, sourceID string) (stream.Inlet, error)
	Close() error
}

// InitLogger initializes the logger based on log level
func InitLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}

// OpenTransport connects the transport selected by cfg.Transport
func OpenTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Transport, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		logger.Info("using in-memory stream transport")
		return &memoryTransport{hub: memory.NewHub(nil, 0)}, nil

	case config.TransportRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		t := redistransport.NewTransport(client, redistransport.Options{
			KeyPrefix:    cfg.Redis.KeyPrefix,
			MaxLen:       cfg.Redis.StreamMaxLen,
			InfoTTL:      cfg.Announcer.TTL,
			BlockTimeout: cfg.Redis.BlockTimeout,
		}, logger)

		if err := t.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		return &redisTransport{Transport: t, client: client}, nil

	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

type memoryTransport struct {
	hub *memory.Hub
}

func (m *memoryTransport) Resolve(ctx context.Context, prop, value string) ([]stream.Descriptor, error) {
	return m.hub.Resolve(ctx, prop, value)
}

func (m *memoryTransport) NewOutlet(ctx context.Context, desc stream.Descriptor) (Outlet, error) {
	out, err := m.hub.NewOutlet(desc)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *memoryTransport) NewInlet(ctx context.Context, sourceID string) (stream.Inlet, error) {
	in, err := m.hub.NewInlet(sourceID)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (m *memoryTransport) Close() error { return nil }

type redisTransport struct {
	*redistransport.Transport
	client *goredis.Client
}

func (r *redisTransport) NewOutlet(ctx context.Context, desc stream.Descriptor) (Outlet, error) {
	out, err := r.Transport.NewOutlet(ctx, desc)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *redisTransport) NewInlet(ctx context.Context, sourceID string) (stream.Inlet, error) {
	in, err := r.Transport.NewInlet(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (r *redisTransport) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
