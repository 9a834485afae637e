package stream

import (
	"context"
	"fmt"
	"time"
)

// Sample is a single published sample. The timestamp is assigned by the
// outlet at push time, in seconds on the stream clock.
type Sample struct {
	Values    []string `json:"values"`
	Timestamp float64  `json:"timestamp"`
	Seq       string   `json:"seq,omitempty"`
}

// Outlet publishes samples on one stream
type Outlet interface {
	Descriptor() Descriptor
	Push(ctx context.Context, values []string) (Sample, error)
	Close() error
}

// Inlet receives samples from one stream
type Inlet interface {
	Descriptor() Descriptor
	// Pull blocks until the next sample arrives or ctx is done.
	Pull(ctx context.Context) (Sample, error)
	Close() error
}

// Resolver discovers streams on a transport
type Resolver interface {
	Resolve(ctx context.Context, prop, value string) ([]Descriptor, error)
}

// ResolveOne polls r until at least one stream matches, returning the first.
// It gives up when ctx is done.
func ResolveOne(ctx context.Context, r Resolver, prop, value string, interval time.Duration) (Descriptor, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		found, err := r.Resolve(ctx, prop, value)
		if err != nil {
			return Descriptor{}, err
		}
		if len(found) > 0 {
			return found[0], nil
		}

		select {
		case <-ctx.Done():
			return Descriptor{}, fmt.Errorf("%w: %s=%s: %v", ErrNotFound, prop, value, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CheckChannels verifies values fit the descriptor's channel count.
func CheckChannels(d Descriptor, values []string) error {
	if len(values) != d.ChannelCount {
		return fmt.Errorf("%w: stream %s has %d channels, got %d values",
			ErrChannelMismatch, d.SourceID, d.ChannelCount, len(values))
	}
	return nil
}
