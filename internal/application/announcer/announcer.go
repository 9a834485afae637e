package announcer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Target is an outlet that can refresh its discovery entry
type Target interface {
	Announce(ctx context.Context) error
}

// MetricsCollector records transport health
type MetricsCollector interface {
	SetTransportUp(sourceID string, up bool)
}

// Status is a snapshot of announcer health
type Status struct {
	Healthy   bool
	LastError string
	LastCheck time.Time
}

// Announcer periodically announces a Target
type Announcer struct {
	target   Target
	sourceID string
	interval time.Duration
	timeout  time.Duration
	metrics  MetricsCollector
	logger   *zap.Logger

	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	status    Status
	listeners []func(healthy bool)
}

// New creates an announcer. It reports healthy until the first check says
// otherwise, since the outlet was announced when it was created.
func New(target Target, sourceID string, interval time.Duration, metrics MetricsCollector, logger *zap.Logger) *Announcer {
	timeout := interval / 2
	if timeout <= 0 {
		timeout = time.Second
	}

	return &Announcer{
		target:   target,
		sourceID: sourceID,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
		status:   Status{Healthy: true, LastCheck: time.Now()},
	}
}

// OnChange registers fn to be called whenever health flips.
// Must be called before Start.
func (a *Announcer) OnChange(fn func(healthy bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Start starts the announce loop
func (a *Announcer) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	a.metrics.SetTransportUp(a.sourceID, true)
	go a.run()
}

// Stop stops the announce loop and waits for it to exit
func (a *Announcer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	stopCh, doneCh := a.stopCh, a.doneCh
	a.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// run is the main announce loop
func (a *Announcer) run() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.Check(context.Background())
		}
	}
}

// Check announces once and records the result
func (a *Announcer) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := a.target.Announce(ctx)

	a.mu.Lock()
	prev := a.status.Healthy
	a.status = Status{Healthy: err == nil, LastCheck: time.Now()}
	if err != nil {
		a.status.LastError = err.Error()
	}
	status := a.status
	listeners := a.listeners
	a.mu.Unlock()

	a.metrics.SetTransportUp(a.sourceID, status.Healthy)

	if err != nil {
		a.logger.Warn("stream announce failed",
			zap.String("source_id", a.sourceID),
			zap.Error(err))
	} else if !prev {
		a.logger.Info("stream announce recovered",
			zap.String("source_id", a.sourceID))
	}

	if prev != status.Healthy {
		for _, fn := range listeners {
			fn(status.Healthy)
		}
	}

	return status
}

// GetStatus returns the last recorded status
func (a *Announcer) GetStatus() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// IsHealthy returns true if the last announce succeeded
func (a *Announcer) IsHealthy() bool {
	return a.GetStatus().Healthy
}
