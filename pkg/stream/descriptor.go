package stream

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// IrregularRate is the nominal rate of an event-driven stream.
const IrregularRate = 0.0

// Format is the value encoding of every channel in a stream
type Format string

const (
	FormatString  Format = "string"
	FormatFloat32 Format = "float32"
	FormatDouble  Format = "double64"
	FormatInt8    Format = "int8"
	FormatInt16   Format = "int16"
	FormatInt32   Format = "int32"
	FormatInt64   Format = "int64"
)

var validFormats = map[Format]bool{
	FormatString:  true,
	FormatFloat32: true,
	FormatDouble:  true,
	FormatInt8:    true,
	FormatInt16:   true,
	FormatInt32:   true,
	FormatInt64:   true,
}

// Resolve properties accepted by Resolver implementations.
const (
	PropSourceID = "source_id"
	PropName     = "name"
	PropType     = "type"
)

// Common errors
var (
	ErrInvalidDescriptor = errors.New("invalid stream descriptor")
	ErrOutletClosed      = errors.New("outlet closed")
	ErrInletClosed       = errors.New("inlet closed")
	ErrChannelMismatch   = errors.New("channel count mismatch")
	ErrNotFound          = errors.New("stream not found")
	ErrUnknownProperty   = errors.New("unknown resolve property")
)

// Descriptor is the immutable metadata of a stream
type Descriptor struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	ChannelCount int       `json:"channel_count"`
	NominalRate  float64   `json:"nominal_srate"`
	Format       Format    `json:"channel_format"`
	SourceID     string    `json:"source_id"`
	Hostname     string    `json:"hostname,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewDescriptor creates a validated descriptor stamped with the local
// hostname and creation time.
func NewDescriptor(name, streamType string, channels int, rate float64, format Format, sourceID string) (Descriptor, error) {
	host, _ := os.Hostname()

	d := Descriptor{
		Name:         name,
		Type:         streamType,
		ChannelCount: channels,
		NominalRate:  rate,
		Format:       format,
		SourceID:     sourceID,
		Hostname:     host,
		CreatedAt:    time.Now().UTC(),
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}

	return d, nil
}

// Validate checks the descriptor fields
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if d.SourceID == "" {
		return fmt.Errorf("%w: source id is required", ErrInvalidDescriptor)
	}
	if d.ChannelCount < 1 {
		return fmt.Errorf("%w: channel count must be at least 1, got %d", ErrInvalidDescriptor, d.ChannelCount)
	}
	if d.NominalRate < 0 {
		return fmt.Errorf("%w: nominal rate must not be negative, got %v", ErrInvalidDescriptor, d.NominalRate)
	}
	if !validFormats[d.Format] {
		return fmt.Errorf("%w: unsupported channel format %q", ErrInvalidDescriptor, d.Format)
	}
	return nil
}

// Irregular reports whether the stream is event-driven
func (d Descriptor) Irregular() bool {
	return d.NominalRate == IrregularRate
}

// Matches reports whether the descriptor's prop equals value.
func (d Descriptor) Matches(prop, value string) (bool, error) {
	switch prop {
	case PropSourceID:
		return d.SourceID == value, nil
	case PropName:
		return d.Name == value, nil
	case PropType:
		return d.Type == value, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownProperty, prop)
	}
}
