package relay

import (
	"context"
	"time"

	"github.com/aescanero/lslrelay/pkg/stream"
	"go.uber.org/zap"
)

// Kind classifies the outcome of accepting a marker
type Kind int

const (
	KindAccepted Kind = iota
	KindValidation
	KindPublication
)

// String returns the metrics label of the kind
func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindValidation:
		return "validation_error"
	case KindPublication:
		return "publication_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of AcceptMarker. On KindAccepted, Sample holds the
// published sample; otherwise Err holds the cause and nothing was published.
type Result struct {
	Kind   Kind
	Marker string
	Sample stream.Sample
	Err    error
}

// OK reports whether the marker was published
func (r Result) OK() bool {
	return r.Kind == KindAccepted
}

// Error returns the failure text, or "" on success
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MetricsCollector is the subset of metrics the relay records
type MetricsCollector interface {
	RecordMarker(result string)
	RecordPublished(sourceID string, duration time.Duration)
}

// Manager relays markers onto a single outlet
type Manager struct {
	outlet  stream.Outlet
	metrics MetricsCollector
	logger  *zap.Logger
}

// NewManager creates a new relay manager bound to outlet
func NewManager(outlet stream.Outlet, metrics MetricsCollector, logger *zap.Logger) *Manager {
	return &Manager{
		outlet:  outlet,
		metrics: metrics,
		logger:  logger,
	}
}

// Descriptor returns the descriptor of the relay stream
func (m *Manager) Descriptor() stream.Descriptor {
	return m.outlet.Descriptor()
}

// AcceptMarker validates body and publishes its marker as one sample
func (m *Manager) AcceptMarker(ctx context.Context, body []byte) Result {
	marker, err := ParseMarker(body)
	if err != nil {
		return m.Reject(err)
	}

	m.logger.Info("marker received", zap.String("marker", marker))

	start := time.Now()
	sample, err := m.outlet.Push(ctx, []string{marker})
	if err != nil {
		m.logger.Error("failed to publish marker",
			zap.String("marker", marker),
			zap.String("source_id", m.outlet.Descriptor().SourceID),
			zap.Error(err))
		return m.finish(Result{Kind: KindPublication, Marker: marker, Err: err})
	}

	m.metrics.RecordPublished(m.outlet.Descriptor().SourceID, time.Since(start))
	m.logger.Debug("marker published",
		zap.String("marker", marker),
		zap.Float64("timestamp", sample.Timestamp),
		zap.String("seq", sample.Seq))

	return m.finish(Result{Kind: KindAccepted, Marker: marker, Sample: sample})
}

// Reject records a request refused before its body was parsed
func (m *Manager) Reject(err error) Result {
	m.logger.Warn("marker rejected", zap.Error(err))
	return m.finish(Result{Kind: KindValidation, Err: err})
}

func (m *Manager) finish(r Result) Result {
	m.metrics.RecordMarker(r.Kind.String())
	return r
}
