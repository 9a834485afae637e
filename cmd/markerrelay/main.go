package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/lslrelay/internal/application/announcer"
	"github.com/aescanero/lslrelay/internal/application/relay"
	"github.com/aescanero/lslrelay/internal/bootstrap"
	"github.com/aescanero/lslrelay/internal/config"
	"github.com/aescanero/lslrelay/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/lslrelay/pkg/api/grpc"
	"github.com/aescanero/lslrelay/pkg/api/http"
	"github.com/aescanero/lslrelay/pkg/api/websocket"
	"github.com/aescanero/lslrelay/pkg/stream"

	"go.uber.org/zap"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := bootstrap.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting marker relay",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("transport", cfg.Transport))

	ctx := context.Background()

	transport, err := bootstrap.OpenTransport(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stream transport", zap.Error(err))
	}

	// Define the stream and its outlet
	desc, err := cfg.Stream.Descriptor()
	if err != nil {
		logger.Fatal("invalid stream descriptor", zap.Error(err))
	}

	outlet, err := transport.NewOutlet(ctx, desc)
	if err != nil {
		logger.Fatal("failed to create outlet", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector(nil)

	relayMgr := relay.NewManager(outlet, metricsCollector, logger)

	streamAnnouncer := announcer.New(outlet, desc.SourceID, cfg.Announcer.Interval, metricsCollector, logger)

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:   cfg.HTTPPort,
		Relay:  relayMgr,
		Health: streamAnnouncer,
		Logger: logger,
	})

	wsHandler := websocket.NewHandler(func(ctx context.Context) (stream.Inlet, error) {
		return transport.NewInlet(ctx, desc.SourceID)
	}, logger)
	httpServer.SetupWebSocket(wsHandler.HandleStream)

	var grpcServer *grpc.Server
	if cfg.GRPCPort > 0 {
		grpcServer, err = grpc.NewServer(&grpc.Config{
			Port:     cfg.GRPCPort,
			Services: []string{desc.SourceID},
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("failed to create gRPC server", zap.Error(err))
		}
		streamAnnouncer.OnChange(func(healthy bool) {
			grpcServer.SetServing(desc.SourceID, healthy)
		})
	}

	streamAnnouncer.Start()

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				logger.Fatal("gRPC server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("marker relay started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("stream", desc.Name),
		zap.String("source_id", desc.SourceID))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}

	streamAnnouncer.Stop()

	if err := outlet.Close(); err != nil {
		logger.Error("outlet close error", zap.Error(err))
	}

	if err := transport.Close(); err != nil {
		logger.Error("transport close error", zap.Error(err))
	}

	logger.Info("marker relay shut down complete")
}
