// Package generator produces markers or random samples on a fixed interval,
// either straight onto an outlet or by POSTing them to a marker relay.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Markers published by RandomMarker
const (
	MarkerGreaterEqual = "gr_eq"
	MarkerLess         = "less"
)

// Sink receives generated markers
type Sink interface {
	Send(ctx context.Context, marker string) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, marker string) error

// Send calls f
func (f SinkFunc) Send(ctx context.Context, marker string) error {
	return f(ctx, marker)
}

// RandomMarker returns gr_eq or less with equal probability
func RandomMarker(r *rand.Rand) func() string {
	return func() string {
		if r.Float64() >= 0.5 {
			return MarkerGreaterEqual
		}
		return MarkerLess
	}
}

// RandomSample returns a uniform float32 in [0, 1) rendered as text
func RandomSample(r *rand.Rand) func() string {
	return func() string {
		return strconv.FormatFloat(float64(r.Float32()), 'f', -1, 32)
	}
}

// Constant always returns marker
func Constant(marker string) func() string {
	return func() string { return marker }
}

// Generator sends one marker per interval until its context ends
type Generator struct {
	sink     Sink
	next     func() string
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new generator
func New(sink Sink, next func() string, interval time.Duration, logger *zap.Logger) *Generator {
	return &Generator{
		sink:     sink,
		next:     next,
		interval: interval,
		logger:   logger,
	}
}

// Run sends a marker immediately and then once per interval. Send errors
// are logged and the loop carries on. It returns the number of markers
// sent successfully when ctx is done.
func (g *Generator) Run(ctx context.Context) int {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	sent := 0
	for {
		marker := g.next()
		if err := g.sink.Send(ctx, marker); err != nil {
			if ctx.Err() != nil {
				return sent
			}
			g.logger.Error("failed to send marker", zap.String("marker", marker), zap.Error(err))
		} else {
			sent++
			g.logger.Info("outputting marker", zap.String("marker", marker))
		}

		select {
		case <-ctx.Done():
			return sent
		case <-ticker.C:
		}
	}
}

// HTTPSink posts markers to a relay endpoint
type HTTPSink struct {
	client *http.Client
	url    string
}

// NewHTTPSink creates a sink posting to url. A nil client uses a client
// with a 5s timeout.
func NewHTTPSink(client *http.Client, url string) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSink{client: client, url: url}
}

// Send posts {"marker": marker} and expects 202 Accepted
func (h *HTTPSink) Send(ctx context.Context, marker string) error {
	body, err := json.Marshal(map[string]string{"marker": marker})
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post marker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		var msg struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &msg) != nil || msg.Message == "" {
			msg.Message = string(raw)
		}
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, msg.Message)
	}

	return nil
}
