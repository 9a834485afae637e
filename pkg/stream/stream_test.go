package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDescriptor(t *testing.T) {
	tests := []struct {
		name     string
		dName    string
		channels int
		rate     float64
		format   Format
		sourceID string
		wantErr  bool
	}{
		{"valid_markers", "markers", 1, IrregularRate, FormatString, "ws-flask-markers", false},
		{"valid_regular", "workshop_outlet", 1, 1, FormatFloat32, "c-multichannel-stream", false},
		{"missing_name", "", 1, 0, FormatString, "id", true},
		{"missing_source_id", "markers", 1, 0, FormatString, "", true},
		{"zero_channels", "markers", 0, 0, FormatString, "id", true},
		{"negative_rate", "markers", 1, -1, FormatString, "id", true},
		{"unknown_format", "markers", 1, 0, Format("complex"), "id", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDescriptor(tt.dName, "markers", tt.channels, tt.rate, tt.format, tt.sourceID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDescriptor))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sourceID, d.SourceID)
			assert.False(t, d.CreatedAt.IsZero())
		})
	}
}

func TestDescriptorMatches(t *testing.T) {
	d := Descriptor{Name: "markers", Type: "Markers", SourceID: "abc"}

	ok, err := d.Matches(PropSourceID, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Matches(PropName, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.Matches(PropType, "Markers")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = d.Matches("hostname", "x")
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestStamperNeverGoesBackwards(t *testing.T) {
	readings := []float64{10, 11, 9, 9.5, 12}
	i := 0
	clock := func() float64 {
		v := readings[i]
		i++
		return v
	}

	s := NewStamper(clock)
	got := make([]float64, 0, len(readings))
	for range readings {
		got = append(got, s.Next())
	}

	assert.Equal(t, []float64{10, 11, 11, 11, 12}, got)
}

func TestLocalClockMonotonic(t *testing.T) {
	clock := LocalClock()
	a := clock()
	b := clock()
	assert.GreaterOrEqual(t, b, a)
	assert.Greater(t, a, float64(0))
}

func TestCheckChannels(t *testing.T) {
	d := Descriptor{SourceID: "x", ChannelCount: 1}
	assert.NoError(t, CheckChannels(d, []string{"a"}))
	assert.ErrorIs(t, CheckChannels(d, []string{"a", "b"}), ErrChannelMismatch)
	assert.ErrorIs(t, CheckChannels(d, nil), ErrChannelMismatch)
}

type stubResolver struct {
	calls int
	after int
}

func (s *stubResolver) Resolve(ctx context.Context, prop, value string) ([]Descriptor, error) {
	s.calls++
	if s.calls > s.after {
		return []Descriptor{{Name: "markers", SourceID: value}}, nil
	}
	return nil, nil
}

func TestResolveOne(t *testing.T) {
	r := &stubResolver{after: 2}

	d, err := ResolveOne(context.Background(), r, PropSourceID, "abc", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "abc", d.SourceID)
	assert.Equal(t, 3, r.calls)
}

func TestResolveOneTimeout(t *testing.T) {
	r := &stubResolver{after: 1 << 30}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ResolveOne(ctx, r, PropSourceID, "missing", 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotFound)
}
