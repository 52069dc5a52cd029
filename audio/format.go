// Package audio defines the uniform audio frame model shared by every node
// in the processing graph: sample formats, stream configuration, and the
// Frame container itself (see graph/ for the nodes that produce/consume it).
package audio

import "fmt"

// Format is a tagged PCM/float sample encoding. The zero value is invalid;
// always construct frames with one of the named constants below.
type Format int

const (
	// Invalid is the zero value; any Frame or StreamConfig carrying it is
	// malformed.
	Invalid Format = iota
	Int8
	Int16
	Int24
	Int32
	Float32
)

// String renders the format tag for logging.
func (f Format) String() string {
	switch f {
	case Int8:
		return "INT8"
	case Int16:
		return "INT16"
	case Int24:
		return "INT24"
	case Int32:
		return "INT32"
	case Float32:
		return "FLOAT32"
	default:
		return "INVALID"
	}
}

// SampleSizeBytes returns the little-endian on-the-wire size of one sample
// in this format.
func (f Format) SampleSizeBytes() int {
	switch f {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int24:
		return 3
	case Int32, Float32:
		return 4
	default:
		return 0
	}
}

// Valid reports whether f is one of the known tags.
func (f Format) Valid() bool {
	return f.SampleSizeBytes() > 0
}

// StreamConfig describes the format, rate and channel layout of an audio
// stream, plus an optional language tag used by translation-aware nodes.
type StreamConfig struct {
	Format       Format
	SampleRateHz int
	Channels     int
	LanguageTag  string // optional; empty when not applicable
}

// Validate checks the stream-level invariants from spec §3: a positive
// sample rate and at least one channel.
func (c StreamConfig) Validate() error {
	if !c.Format.Valid() {
		return fmt.Errorf("audio: invalid format %v", c.Format)
	}
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("audio: sample_rate_hz must be > 0, got %d", c.SampleRateHz)
	}
	if c.Channels < 1 {
		return fmt.Errorf("audio: channels must be >= 1, got %d", c.Channels)
	}
	return nil
}
