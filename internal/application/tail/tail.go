// Package tail prints samples pulled from an inlet, one line per sample.
package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aescanero/lslrelay/pkg/stream"
)

// FormatSample renders a sample as "<timestamp>\t\treceived: <values>"
func FormatSample(s stream.Sample) string {
	return fmt.Sprintf("%.6f\t\treceived: %s", s.Timestamp, strings.Join(s.Values, ", "))
}

// Run pulls from in and writes each sample to w until ctx is done or the
// inlet closes. It returns the number of samples written.
func Run(ctx context.Context, in stream.Inlet, w io.Writer) (int, error) {
	n := 0
	for {
		s, err := in.Pull(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, stream.ErrInletClosed) {
				return n, nil
			}
			return n, fmt.Errorf("pull failed: %w", err)
		}

		if _, err := fmt.Fprintln(w, FormatSample(s)); err != nil {
			return n, fmt.Errorf("write failed: %w", err)
		}
		n++
	}
}

// RunAll tails every inlet concurrently into w, one line per sample. Lines
// from different inlets never interleave. It returns once all inlets have
// stopped, with the total sample count and the first error seen.
func RunAll(ctx context.Context, inlets []stream.Inlet, w io.Writer) (int, error) {
	sw := &syncWriter{w: w}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    int
		firstErr error
	)

	for _, in := range inlets {
		wg.Add(1)
		go func(in stream.Inlet) {
			defer wg.Done()

			n, err := Run(ctx, in, sw)

			mu.Lock()
			defer mu.Unlock()
			total += n
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", in.Descriptor().SourceID, err)
			}
		}(in)
	}

	wg.Wait()
	return total, firstErr
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
