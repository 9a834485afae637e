package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/aescanero/lslrelay/pkg/stream"
)

// DefaultInletBuffer is the per-inlet sample capacity when none is given
const DefaultInletBuffer = 64

// Hub is an in-process stream transport. Outlets publish onto the hub and
// every inlet opened on the same source id receives the samples pushed
// after it opened.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*channel
	clock   stream.Clock
	buffer  int
}

type channel struct {
	desc    stream.Descriptor
	inlets  map[*Inlet]struct{}
	seq     uint64
	dropped uint64
}

// NewHub creates a new in-memory hub. A nil clock uses stream.LocalClock.
func NewHub(clock stream.Clock, inletBuffer int) *Hub {
	if inletBuffer <= 0 {
		inletBuffer = DefaultInletBuffer
	}
	return &Hub{
		streams: make(map[string]*channel),
		clock:   clock,
		buffer:  inletBuffer,
	}
}

// NewOutlet registers desc on the hub and returns its outlet.
// Only one outlet may own a source id at a time.
func (h *Hub) NewOutlet(desc stream.Descriptor) (*Outlet, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.streams[desc.SourceID]; exists {
		return nil, fmt.Errorf("outlet for source id %s already exists", desc.SourceID)
	}

	h.streams[desc.SourceID] = &channel{
		desc:   desc,
		inlets: make(map[*Inlet]struct{}),
	}

	return &Outlet{
		hub:     h,
		desc:    desc,
		stamper: stream.NewStamper(h.clock),
	}, nil
}

// NewInlet opens an inlet on the stream with the given source id
func (h *Hub) NewInlet(sourceID string) (*Inlet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.streams[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: source_id=%s", stream.ErrNotFound, sourceID)
	}

	in := &Inlet{
		hub:     h,
		desc:    ch.desc,
		samples: make(chan stream.Sample, h.buffer),
		done:    make(chan struct{}),
	}
	ch.inlets[in] = struct{}{}

	return in, nil
}

// Resolve returns descriptors of live streams whose prop equals value
func (h *Hub) Resolve(ctx context.Context, prop, value string) ([]stream.Descriptor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var found []stream.Descriptor
	for _, ch := range h.streams {
		ok, err := ch.desc.Matches(prop, value)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, ch.desc)
		}
	}
	return found, nil
}

// Dropped returns how many samples were dropped on full inlets of a stream
func (h *Hub) Dropped(sourceID string) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if ch, ok := h.streams[sourceID]; ok {
		return ch.dropped
	}
	return 0
}

// publish delivers a sample to every inlet of the stream
func (h *Hub) publish(sourceID string, values []string, stamper *stream.Stamper) (stream.Sample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.streams[sourceID]
	if !ok {
		return stream.Sample{}, stream.ErrOutletClosed
	}

	ch.seq++
	sample := stream.Sample{
		Values:    append([]string(nil), values...),
		Timestamp: stamper.Next(),
		Seq:       strconv.FormatUint(ch.seq, 10),
	}

	for in := range ch.inlets {
		select {
		case in.samples <- sample:
		default:
			// Inlet full, drop for this inlet only
			ch.dropped++
		}
	}

	return sample, nil
}

func (h *Hub) removeStream(sourceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.streams[sourceID]
	if !ok {
		return
	}
	for in := range ch.inlets {
		in.closeOnce.Do(func() { close(in.done) })
	}
	delete(h.streams, sourceID)
}

func (h *Hub) removeInlet(in *Inlet) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.streams[in.desc.SourceID]; ok {
		delete(ch.inlets, in)
	}
}

// Outlet publishes onto a Hub
type Outlet struct {
	hub     *Hub
	desc    stream.Descriptor
	stamper *stream.Stamper

	mu     sync.RWMutex
	closed bool
}

// Descriptor returns the outlet's stream descriptor
func (o *Outlet) Descriptor() stream.Descriptor {
	return o.desc
}

// Push publishes one sample
func (o *Outlet) Push(ctx context.Context, values []string) (stream.Sample, error) {
	if err := ctx.Err(); err != nil {
		return stream.Sample{}, err
	}
	if err := stream.CheckChannels(o.desc, values); err != nil {
		return stream.Sample{}, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return stream.Sample{}, stream.ErrOutletClosed
	}

	return o.hub.publish(o.desc.SourceID, values, o.stamper)
}

// Announce reports whether the outlet is still registered on the hub
func (o *Outlet) Announce(ctx context.Context) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return stream.ErrOutletClosed
	}
	return nil
}

// Close unregisters the stream and closes its inlets
func (o *Outlet) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	o.hub.removeStream(o.desc.SourceID)
	return nil
}

// Inlet receives samples from a Hub stream
type Inlet struct {
	hub     *Hub
	desc    stream.Descriptor
	samples chan stream.Sample

	done      chan struct{}
	closeOnce sync.Once
}

// Descriptor returns the inlet's stream descriptor
func (i *Inlet) Descriptor() stream.Descriptor {
	return i.desc
}

// Pull blocks until a sample is available, the inlet closes or ctx ends.
// Samples already queued are drained before a close is reported.
func (i *Inlet) Pull(ctx context.Context) (stream.Sample, error) {
	select {
	case s := <-i.samples:
		return s, nil
	default:
	}

	select {
	case s := <-i.samples:
		return s, nil
	case <-i.done:
		select {
		case s := <-i.samples:
			return s, nil
		default:
			return stream.Sample{}, stream.ErrInletClosed
		}
	case <-ctx.Done():
		return stream.Sample{}, ctx.Err()
	}
}

// Close detaches the inlet from its stream
func (i *Inlet) Close() error {
	i.hub.removeInlet(i)
	i.closeOnce.Do(func() { close(i.done) })
	return nil
}
