package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aescanero/lslrelay/internal/application/tail"
	"github.com/aescanero/lslrelay/internal/bootstrap"
	"github.com/aescanero/lslrelay/internal/config"
	"github.com/aescanero/lslrelay/pkg/stream"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// valueList collects a repeatable flag
type valueList []string

func (v *valueList) String() string { return strings.Join(*v, ",") }

func (v *valueList) Set(s string) error {
	*v = append(*v, s)
	return nil
}

func main() {
	var values valueList
	by := flag.String("by", stream.PropSourceID, "resolve property: source_id, name or type")
	flag.Var(&values, "id", "value of the resolve property; repeat to tail several streams (default ws-flask-markers)")
	wait := flag.Duration("wait", time.Minute, "how long to wait for each stream to appear")
	flag.Parse()

	if len(values) == 0 {
		values = valueList{"ws-flask-markers"}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := bootstrap.InitLogger(cfg.LogLevel).With(zap.String("consumer", uuid.New().String()))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := bootstrap.OpenTransport(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stream transport", zap.Error(err))
	}
	defer transport.Close()

	var inlets []stream.Inlet
	for _, value := range values {
		resolveCtx, cancel := context.WithTimeout(ctx, *wait)
		desc, err := stream.ResolveOne(resolveCtx, transport, *by, value, 500*time.Millisecond)
		cancel()
		if err != nil {
			logger.Fatal("failed to resolve stream", zap.String("by", *by), zap.String("value", value), zap.Error(err))
		}

		logger.Info("stream resolved",
			zap.String("name", desc.Name),
			zap.String("type", desc.Type),
			zap.String("source_id", desc.SourceID),
			zap.String("hostname", desc.Hostname),
			zap.Bool("irregular", desc.Irregular()))

		inlet, err := transport.NewInlet(ctx, desc.SourceID)
		if err != nil {
			logger.Fatal("failed to open inlet", zap.String("source_id", desc.SourceID), zap.Error(err))
		}
		defer inlet.Close()

		inlets = append(inlets, inlet)
	}

	n, err := tail.RunAll(ctx, inlets, os.Stdout)
	if err != nil {
		logger.Error("logger stopped", zap.Int("samples", n), zap.Error(err))
		return
	}

	logger.Info("logger stopped", zap.Int("samples", n))
}
