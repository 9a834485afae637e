package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/lslrelay/internal/application/generator"
	"github.com/aescanero/lslrelay/internal/bootstrap"
	"github.com/aescanero/lslrelay/internal/config"
	"github.com/aescanero/lslrelay/pkg/stream"

	"go.uber.org/zap"
)

// outletMode describes a mode that pushes straight onto an outlet
type outletMode struct {
	name     string
	srcID    string
	rate     float64
	format   stream.Format
	interval time.Duration
	next     func(r *rand.Rand) func() string
}

var outletModes = map[string]outletMode{
	// gr_eq/less markers at an irregular rate
	"random": {"workshop_marker_outlet", "workshop_ex_a", stream.IrregularRate, stream.FormatString, time.Second, generator.RandomMarker},
	// 1 Hz float32 samples
	"sample": {"workshop_outlet", "c-multichannel-stream", 1, stream.FormatFloat32, time.Second, generator.RandomSample},
}

func main() {
	mode := flag.String("mode", "random", "random: push gr_eq/less onto an outlet; sample: push 1 Hz float32 samples; http: POST markers to a relay")
	interval := flag.Duration("interval", 0, "time between markers (default 1s random/sample, 2s http)")
	url := flag.String("url", "http://127.0.0.1:5000/markers", "relay endpoint for -mode=http")
	marker := flag.String("marker", "hello", "marker text for -mode=http")
	name := flag.String("name", "", "stream name (default per mode)")
	streamType := flag.String("type", "single_stream", "stream type")
	sourceID := flag.String("id", "", "stream source id (default per mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := bootstrap.InitLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink generator.Sink
		next func() string
	)

	if m, ok := outletModes[*mode]; ok {
		if *interval == 0 {
			*interval = m.interval
		}
		if *name == "" {
			*name = m.name
		}
		if *sourceID == "" {
			*sourceID = m.srcID
		}

		transport, err := bootstrap.OpenTransport(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to open stream transport", zap.Error(err))
		}
		defer transport.Close()

		desc, err := stream.NewDescriptor(*name, *streamType, 1, m.rate, m.format, *sourceID)
		if err != nil {
			logger.Fatal("invalid stream descriptor", zap.Error(err))
		}

		outlet, err := transport.NewOutlet(ctx, desc)
		if err != nil {
			logger.Fatal("failed to create outlet", zap.Error(err))
		}
		defer outlet.Close()

		go announce(ctx, outlet, cfg.Announcer.Interval, logger)

		sink = generator.SinkFunc(func(ctx context.Context, v string) error {
			_, err := outlet.Push(ctx, []string{v})
			return err
		})
		next = m.next(rand.New(rand.NewSource(time.Now().UnixNano())))
	} else if *mode == "http" {
		if *interval == 0 {
			*interval = 2 * time.Second
		}
		sink = generator.NewHTTPSink(nil, *url)
		next = generator.Constant(*marker)
	} else {
		fmt.Fprintf(os.Stderr, "unknown mode %q (must be random, sample or http)\n", *mode)
		os.Exit(2)
	}

	logger.Info("starting marker generator",
		zap.String("mode", *mode),
		zap.Duration("interval", *interval))

	sent := generator.New(sink, next, *interval, logger).Run(ctx)

	logger.Info("marker generator stopped", zap.Int("sent", sent))
}

// announce keeps the descriptor resolvable while generating
func announce(ctx context.Context, outlet bootstrap.Outlet, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := outlet.Announce(ctx); err != nil {
				logger.Warn("stream announce failed", zap.Error(err))
			}
		}
	}
}
