package redis

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/lslrelay/pkg/stream"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTransport(t *testing.T, opts Options) (*Transport, *miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if opts.BlockTimeout == 0 {
		opts.BlockTimeout = 50 * time.Millisecond
	}
	return NewTransport(client, opts, zap.NewNop()), mr, client
}

func markerDescriptor(t *testing.T, name, sourceID string) stream.Descriptor {
	t.Helper()
	d, err := stream.NewDescriptor(name, "markers", 1, stream.IrregularRate, stream.FormatString, sourceID)
	require.NoError(t, err)
	return d
}

func pull(t *testing.T, in *Inlet) stream.Sample {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := in.Pull(ctx)
	require.NoError(t, err)
	return s
}

func TestNewOutletAnnounces(t *testing.T) {
	tr, mr, _ := newTestTransport(t, Options{InfoTTL: 30 * time.Second})
	ctx := context.Background()

	out, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "ws-flask-markers"))
	require.NoError(t, err)

	assert.True(t, mr.Exists("lsl:info:ws-flask-markers"))
	assert.Equal(t, 30*time.Second, mr.TTL("lsl:info:ws-flask-markers"))

	// Without a refresh the entry expires
	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("lsl:info:ws-flask-markers"))

	require.NoError(t, out.Announce(ctx))
	assert.True(t, mr.Exists("lsl:info:ws-flask-markers"))
}

func TestPushPullOverStreams(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	out, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "ex-a"))
	require.NoError(t, err)
	defer out.Close()

	in, err := tr.NewInlet(ctx, "ex-a")
	require.NoError(t, err)
	defer in.Close()

	assert.Equal(t, "markers", in.Descriptor().Name)

	pushed, err := out.Push(ctx, []string{"gr_eq"})
	require.NoError(t, err)
	assert.NotEmpty(t, pushed.Seq)

	got := pull(t, in)
	assert.Equal(t, []string{"gr_eq"}, got.Values)
	assert.Equal(t, pushed.Timestamp, got.Timestamp)
	assert.Equal(t, pushed.Seq, got.Seq)
}

func TestRedisInletStartsAfterTail(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	out, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "late"))
	require.NoError(t, err)

	_, err = out.Push(ctx, []string{"before"})
	require.NoError(t, err)

	in, err := tr.NewInlet(ctx, "late")
	require.NoError(t, err)

	_, err = out.Push(ctx, []string{"after"})
	require.NoError(t, err)

	assert.Equal(t, []string{"after"}, pull(t, in).Values)
}

func TestNewInletUnknownSource(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})

	_, err := tr.NewInlet(context.Background(), "nobody")
	assert.ErrorIs(t, err, stream.ErrNotFound)
}

func TestPushTrimsToMaxLen(t *testing.T) {
	tr, _, client := newTestTransport(t, Options{MaxLen: 5})
	ctx := context.Background()

	out, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "trim"))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := out.Push(ctx, []string{"m"})
		require.NoError(t, err)
	}

	n, err := client.XLen(ctx, "lsl:stream:trim").Result()
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
	assert.LessOrEqual(t, n, int64(5))
}

func TestConcurrentPushesKeepTimestampOrder(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	out, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "busy"))
	require.NoError(t, err)
	in, err := tr.NewInlet(ctx, "busy")
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := out.Push(ctx, []string{"x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ts := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		ts = append(ts, pull(t, in).Timestamp)
	}
	assert.True(t, sort.Float64sAreSorted(ts), "timestamps must not decrease in stream order")
}

func TestRedisPushErrors(t *testing.T) {
	tr, mr, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	out, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "errs"))
	require.NoError(t, err)

	_, err = out.Push(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, stream.ErrChannelMismatch)

	require.NoError(t, out.Close())
	assert.False(t, mr.Exists("lsl:info:errs"))

	_, err = out.Push(ctx, []string{"a"})
	assert.ErrorIs(t, err, stream.ErrOutletClosed)
	assert.ErrorIs(t, out.Announce(ctx), stream.ErrOutletClosed)

	// Closing twice is fine
	assert.NoError(t, out.Close())
}

func TestRedisResolve(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	_, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "relay-a"))
	require.NoError(t, err)
	_, err = tr.NewOutlet(ctx, markerDescriptor(t, "markers", "relay-b"))
	require.NoError(t, err)
	_, err = tr.NewOutlet(ctx, markerDescriptor(t, "workshop_marker_outlet", "workshop_ex_a"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		prop    string
		value   string
		wantIDs []string
	}{
		{"by_source_id", stream.PropSourceID, "relay-b", []string{"relay-b"}},
		{"by_name", stream.PropName, "markers", []string{"relay-a", "relay-b"}},
		{"by_type", stream.PropType, "markers", []string{"relay-a", "relay-b", "workshop_ex_a"}},
		{"missing_source_id", stream.PropSourceID, "nobody", nil},
		{"missing_name", stream.PropName, "eeg", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := tr.Resolve(ctx, tt.prop, tt.value)
			require.NoError(t, err)

			var ids []string
			for _, d := range found {
				ids = append(ids, d.SourceID)
			}
			sort.Strings(ids)
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	_, err = tr.Resolve(ctx, "hostname", "x")
	assert.ErrorIs(t, err, stream.ErrUnknownProperty)
}

func TestResolveOneOverRedis(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	desc := markerDescriptor(t, "markers", "slow")
	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = tr.NewOutlet(context.Background(), desc)
	}()

	found, err := stream.ResolveOne(ctx, tr, stream.PropSourceID, "slow", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "slow", found.SourceID)
}

func TestRedisCloseUnblocksPull(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	_, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "idle"))
	require.NoError(t, err)
	in, err := tr.NewInlet(ctx, "idle")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := in.Pull(context.Background())
		errCh <- err
	}()

	// Let Pull enter XREAD
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = in.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked while Pull was waiting")
	}

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, stream.ErrInletClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Pull did not return after Close")
	}
}

func TestPullHonoursContext(t *testing.T) {
	tr, _, _ := newTestTransport(t, Options{})
	ctx := context.Background()

	_, err := tr.NewOutlet(ctx, markerDescriptor(t, "markers", "quiet"))
	require.NoError(t, err)
	in, err := tr.NewInlet(ctx, "quiet")
	require.NoError(t, err)

	pullCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	_, err = in.Pull(pullCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
