package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records relay metrics in Prometheus
type Collector struct {
	markersReceived  *prometheus.CounterVec
	samplesPublished *prometheus.CounterVec
	publishDuration  prometheus.Histogram
	transportUp      *prometheus.GaugeVec
}

// NewCollector creates a collector registered on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		markersReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lslrelay_markers_received_total",
				Help: "Total number of marker requests by result",
			},
			[]string{"result"},
		),
		samplesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lslrelay_samples_published_total",
				Help: "Total number of samples published on a stream",
			},
			[]string{"source_id"},
		),
		publishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lslrelay_publish_duration_seconds",
				Help:    "Time spent pushing a sample to the transport",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		transportUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lslrelay_transport_up",
				Help: "Whether the last announce on the stream transport succeeded",
			},
			[]string{"source_id"},
		),
	}
}

// RecordMarker counts a marker request outcome
func (c *Collector) RecordMarker(result string) {
	c.markersReceived.WithLabelValues(result).Inc()
}

// RecordPublished counts a published sample and its push latency
func (c *Collector) RecordPublished(sourceID string, duration time.Duration) {
	c.samplesPublished.WithLabelValues(sourceID).Inc()
	c.publishDuration.Observe(duration.Seconds())
}

// SetTransportUp records the transport health of a stream
func (c *Collector) SetTransportUp(sourceID string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	c.transportUp.WithLabelValues(sourceID).Set(v)
}
