package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/lslrelay/pkg/stream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options tunes the Redis transport
type Options struct {
	// KeyPrefix namespaces every key, e.g. "lsl" gives lsl:stream:<id>
	KeyPrefix string
	// MaxLen trims each stream approximately to this length; 0 disables trimming
	MaxLen int64
	// InfoTTL is how long a descriptor stays resolvable without a refresh
	InfoTTL time.Duration
	// BlockTimeout bounds a single XREAD call inside Pull
	BlockTimeout time.Duration
	// Clock stamps samples; nil uses stream.LocalClock
	Clock stream.Clock
}

// Transport implements stream outlets, inlets and discovery on Redis Streams
type Transport struct {
	client *redis.Client
	opts   Options
	logger *zap.Logger
}

// NewTransport creates a new Redis Streams transport
func NewTransport(client *redis.Client, opts Options, logger *zap.Logger) *Transport {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "lsl"
	}
	if opts.InfoTTL <= 0 {
		opts.InfoTTL = 30 * time.Second
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = time.Second
	}

	return &Transport{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Ping checks the Redis connection
func (t *Transport) Ping(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// NewOutlet registers desc for discovery and returns its outlet
func (t *Transport) NewOutlet(ctx context.Context, desc stream.Descriptor) (*Outlet, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	o := &Outlet{
		transport: t,
		desc:      desc,
		stamper:   stream.NewStamper(t.opts.Clock),
		streamKey: streamKey(t.opts.KeyPrefix, desc.SourceID),
	}

	if err := o.Announce(ctx); err != nil {
		return nil, err
	}

	t.logger.Info("outlet created",
		zap.String("name", desc.Name),
		zap.String("source_id", desc.SourceID),
		zap.String("stream", o.streamKey))

	return o, nil
}

// NewInlet opens an inlet on the stream with the given source id.
// The inlet starts after the last sample already in the stream.
func (t *Transport) NewInlet(ctx context.Context, sourceID string) (*Inlet, error) {
	desc, err := t.lookup(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	key := streamKey(t.opts.KeyPrefix, sourceID)

	lastID := "0-0"
	msgs, err := t.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(msgs) > 0 {
		lastID = msgs[0].ID
	}

	t.logger.Debug("inlet opened",
		zap.String("source_id", sourceID),
		zap.String("stream", key),
		zap.String("from_id", lastID))

	return &Inlet{
		transport: t,
		desc:      desc,
		streamKey: key,
		lastID:    lastID,
	}, nil
}

// Resolve scans registered descriptors for those whose prop equals value
func (t *Transport) Resolve(ctx context.Context, prop, value string) ([]stream.Descriptor, error) {
	// Reject unknown properties before touching Redis
	if _, err := (stream.Descriptor{}).Matches(prop, value); err != nil {
		return nil, err
	}

	if prop == stream.PropSourceID {
		desc, err := t.lookup(ctx, value)
		if errors.Is(err, stream.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []stream.Descriptor{desc}, nil
	}

	pattern := infoKey(t.opts.KeyPrefix, "*")

	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = t.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	found := make([]stream.Descriptor, 0, len(keys))
	for _, key := range keys {
		data, err := t.client.Get(ctx, key).Bytes()
		if err != nil {
			// Expired between SCAN and GET
			continue
		}

		var desc stream.Descriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			t.logger.Warn("skipping malformed descriptor",
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		if ok, _ := desc.Matches(prop, value); ok {
			found = append(found, desc)
		}
	}

	return found, nil
}

func (t *Transport) lookup(ctx context.Context, sourceID string) (stream.Descriptor, error) {
	data, err := t.client.Get(ctx, infoKey(t.opts.KeyPrefix, sourceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return stream.Descriptor{}, fmt.Errorf("%w: source_id=%s", stream.ErrNotFound, sourceID)
		}
		return stream.Descriptor{}, fmt.Errorf("failed to get descriptor: %w", err)
	}

	var desc stream.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return stream.Descriptor{}, fmt.Errorf("failed to unmarshal descriptor: %w", err)
	}
	return desc, nil
}

// Outlet publishes samples with XADD
type Outlet struct {
	transport *Transport
	desc      stream.Descriptor
	stamper   *stream.Stamper
	streamKey string

	mu     sync.RWMutex
	closed bool

	// pushMu keeps XADD order equal to timestamp order
	pushMu sync.Mutex
}

// Descriptor returns the outlet's stream descriptor
func (o *Outlet) Descriptor() stream.Descriptor {
	return o.desc
}

// Push publishes one sample. Concurrent pushes are serialized so entries
// land in the stream in timestamp order.
func (o *Outlet) Push(ctx context.Context, values []string) (stream.Sample, error) {
	if err := stream.CheckChannels(o.desc, values); err != nil {
		return stream.Sample{}, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return stream.Sample{}, stream.ErrOutletClosed
	}

	o.pushMu.Lock()
	defer o.pushMu.Unlock()

	ts := o.stamper.Next()

	args := &redis.XAddArgs{
		Stream: o.streamKey,
		Values: encodeSample(ts, values),
	}
	if o.transport.opts.MaxLen > 0 {
		args.MaxLen = o.transport.opts.MaxLen
		args.Approx = true
	}

	id, err := o.transport.client.XAdd(ctx, args).Result()
	if err != nil {
		return stream.Sample{}, fmt.Errorf("failed to add to stream: %w", err)
	}

	o.transport.logger.Debug("sample pushed",
		zap.String("stream", o.streamKey),
		zap.String("id", id),
		zap.Float64("timestamp", ts))

	return stream.Sample{
		Values:    append([]string(nil), values...),
		Timestamp: ts,
		Seq:       id,
	}, nil
}

// Announce writes the descriptor with a fresh TTL
func (o *Outlet) Announce(ctx context.Context) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return stream.ErrOutletClosed
	}

	data, err := json.Marshal(o.desc)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	key := infoKey(o.transport.opts.KeyPrefix, o.desc.SourceID)
	if err := o.transport.client.Set(ctx, key, data, o.transport.opts.InfoTTL).Err(); err != nil {
		return fmt.Errorf("failed to announce descriptor: %w", err)
	}

	return nil
}

// Close removes the descriptor from discovery. Samples already in the
// stream are left to the MAXLEN trim.
func (o *Outlet) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := infoKey(o.transport.opts.KeyPrefix, o.desc.SourceID)
	if err := o.transport.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove descriptor: %w", err)
	}

	return nil
}

// Inlet reads samples with XREAD BLOCK
type Inlet struct {
	transport *Transport
	desc      stream.Descriptor
	streamKey string

	// mu serializes Pull; Close never takes it
	mu      sync.Mutex
	lastID  string
	pending []stream.Sample

	closed atomic.Bool
}

// Descriptor returns the inlet's stream descriptor
func (i *Inlet) Descriptor() stream.Descriptor {
	return i.desc
}

// Pull blocks until the next sample, the inlet closes or ctx is done.
// A Close is noticed between XREAD rounds, so within one BlockTimeout.
func (i *Inlet) Pull(ctx context.Context) (stream.Sample, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for {
		if i.closed.Load() {
			i.pending = nil
			return stream.Sample{}, stream.ErrInletClosed
		}
		if len(i.pending) > 0 {
			s := i.pending[0]
			i.pending = i.pending[1:]
			return s, nil
		}
		if err := ctx.Err(); err != nil {
			return stream.Sample{}, err
		}

		streams, err := i.transport.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{i.streamKey, i.lastID},
			Count:   10,
			Block:   i.transport.opts.BlockTimeout,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				// No new samples
				continue
			}
			if ctx.Err() != nil {
				return stream.Sample{}, ctx.Err()
			}
			if i.closed.Load() {
				return stream.Sample{}, stream.ErrInletClosed
			}
			return stream.Sample{}, fmt.Errorf("failed to read from stream: %w", err)
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				i.lastID = msg.ID

				s, err := decodeSample(msg)
				if err != nil {
					i.transport.logger.Error("invalid sample format",
						zap.String("stream", i.streamKey),
						zap.String("message_id", msg.ID),
						zap.Error(err))
					continue
				}
				i.pending = append(i.pending, s)
			}
		}
	}
}

// Close stops the inlet. It does not wait for a Pull in progress.
func (i *Inlet) Close() error {
	i.closed.Store(true)
	return nil
}

// encodeSample lays out a sample as XADD field/value pairs
func encodeSample(ts float64, values []string) map[string]interface{} {
	fields := make(map[string]interface{}, len(values)+1)
	fields["ts"] = strconv.FormatFloat(ts, 'f', -1, 64)
	for idx, v := range values {
		fields[valueField(idx)] = v
	}
	return fields
}

// decodeSample is the inverse of encodeSample
func decodeSample(msg redis.XMessage) (stream.Sample, error) {
	rawTS, ok := msg.Values["ts"].(string)
	if !ok {
		return stream.Sample{}, fmt.Errorf("missing ts field")
	}
	ts, err := strconv.ParseFloat(rawTS, 64)
	if err != nil {
		return stream.Sample{}, fmt.Errorf("invalid ts %q: %w", rawTS, err)
	}

	n := 0
	for k := range msg.Values {
		if strings.HasPrefix(k, "v") {
			n++
		}
	}

	values := make([]string, n)
	for idx := 0; idx < n; idx++ {
		v, ok := msg.Values[valueField(idx)].(string)
		if !ok {
			return stream.Sample{}, fmt.Errorf("missing channel %d", idx)
		}
		values[idx] = v
	}

	return stream.Sample{Values: values, Timestamp: ts, Seq: msg.ID}, nil
}

func valueField(idx int) string {
	return "v" + strconv.Itoa(idx)
}

// streamKey returns the Redis stream key for a source id
func streamKey(prefix, sourceID string) string {
	return fmt.Sprintf("%s:stream:%s", prefix, sourceID)
}

// infoKey returns the Redis key holding a source id's descriptor
func infoKey(prefix, sourceID string) string {
	return fmt.Sprintf("%s:info:%s", prefix, sourceID)
}
