package stream

import (
	"sync"
	"time"
)

// Clock returns the current stream time in seconds
type Clock func() float64

var (
	clockOnce  sync.Once
	clockStart time.Time
	clockBase  float64
)

// LocalClock returns a monotonic clock in seconds. Readings share one
// process-wide origin so samples from different outlets are comparable.
func LocalClock() Clock {
	clockOnce.Do(func() {
		clockStart = time.Now()
		clockBase = float64(clockStart.UnixNano()) / 1e9
	})

	return func() float64 {
		return clockBase + time.Since(clockStart).Seconds()
	}
}

// Stamper hands out non-decreasing timestamps from a Clock.
// The zero value is not usable; create it with NewStamper.
type Stamper struct {
	clock Clock
	mu    sync.Mutex
	last  float64
}

// NewStamper creates a stamper. A nil clock uses LocalClock.
func NewStamper(clock Clock) *Stamper {
	if clock == nil {
		clock = LocalClock()
	}
	return &Stamper{clock: clock}
}

// Next returns the next timestamp, never smaller than the previous one
func (s *Stamper) Next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.clock()
	if ts < s.last {
		ts = s.last
	}
	s.last = ts
	return ts
}
