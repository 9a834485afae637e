package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMarker("accepted")
	c.RecordMarker("accepted")
	c.RecordMarker("validation_error")
	if got := testutil.ToFloat64(c.markersReceived.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("expected accepted counter 2, got %f", got)
	}
	if got := testutil.ToFloat64(c.markersReceived.WithLabelValues("validation_error")); got != 1 {
		t.Fatalf("expected validation counter 1, got %f", got)
	}

	c.RecordPublished("ws-flask-markers", 3*time.Millisecond)
	if got := testutil.ToFloat64(c.samplesPublished.WithLabelValues("ws-flask-markers")); got != 1 {
		t.Fatalf("expected published counter 1, got %f", got)
	}
	if samples := testutil.CollectAndCount(c.publishDuration); samples != 1 {
		t.Fatalf("expected publish histogram to record 1 sample, got %d", samples)
	}

	c.SetTransportUp("ws-flask-markers", true)
	if got := testutil.ToFloat64(c.transportUp.WithLabelValues("ws-flask-markers")); got != 1 {
		t.Fatalf("expected transport up 1, got %f", got)
	}
	c.SetTransportUp("ws-flask-markers", false)
	if got := testutil.ToFloat64(c.transportUp.WithLabelValues("ws-flask-markers")); got != 0 {
		t.Fatalf("expected transport up 0, got %f", got)
	}
}
