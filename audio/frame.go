package audio

import (
	"fmt"
	"log/slog"
	"math"
)

// IncompatibleFormatError is returned whenever two frames (or a frame and a
// node's expected stream config) disagree on format, sample rate, or channel
// count. It is fatal at the point it is raised: callers should not retry.
type IncompatibleFormatError struct {
	Op       string
	Expected StreamConfig
	Got      StreamConfig
}

func (e *IncompatibleFormatError) Error() string {
	return fmt.Sprintf("audio: %s: incompatible format: expected %v/%dHz/%dch, got %v/%dHz/%dch",
		e.Op, e.Expected.Format, e.Expected.SampleRateHz, e.Expected.Channels,
		e.Got.Format, e.Got.SampleRateHz, e.Got.Channels)
}

// Frame is an immutable-by-convention chunk of PCM or float audio plus its
// format metadata. Callers that need to mutate a Frame's payload should
// clone it first (see Clone); transport within the graph copies payloads by
// default to keep a single owner per Frame at any time.
type Frame struct {
	Format       Format
	SampleRateHz int
	Channels     int
	Payload      []byte
}

// StreamConfig returns the (format, rate, channels) triple describing f.
func (f Frame) StreamConfig() StreamConfig {
	return StreamConfig{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: f.Channels}
}

// bytesPerFrame is sample_size_bytes * channels: the size of one multi
// channel sample "frame" (a single instant across all channels).
func (f Frame) bytesPerFrame() int {
	return f.Format.SampleSizeBytes() * f.Channels
}

// FrameCount returns len(payload) / bytesPerFrame. Callers should check
// Malformed() before trusting this value on attacker- or device-supplied
// data.
func (f Frame) FrameCount() int {
	bpf := f.bytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return len(f.Payload) / bpf
}

// Malformed reports whether the payload length is not an exact multiple of
// bytesPerFrame, per the Frame integrity invariant (spec §8).
func (f Frame) Malformed() bool {
	bpf := f.bytesPerFrame()
	if bpf == 0 {
		return true
	}
	return len(f.Payload)%bpf != 0
}

// DurationMs returns frame_count * 1000 / sample_rate_hz.
func (f Frame) DurationMs() float64 {
	if f.SampleRateHz == 0 {
		return 0
	}
	return float64(f.FrameCount()) * 1000 / float64(f.SampleRateHz)
}

// compatibleWith reports whether f and other share (format, rate, channels).
func (f Frame) compatibleWith(other Frame) bool {
	return f.Format == other.Format && f.SampleRateHz == other.SampleRateHz && f.Channels == other.Channels
}

// Clone returns a Frame with its own copy of the payload, so the result can
// be mutated without affecting f.
func (f Frame) Clone() Frame {
	cp := make([]byte, len(f.Payload))
	copy(cp, f.Payload)
	return Frame{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: cp}
}

// Append returns a new Frame whose payload is f's payload followed by
// other's. Both frames must share (format, rate, channels); otherwise
// IncompatibleFormatError is returned and neither input is modified.
func (f Frame) Append(other Frame) (Frame, error) {
	if !f.compatibleWith(other) {
		return Frame{}, &IncompatibleFormatError{Op: "append", Expected: f.StreamConfig(), Got: other.StreamConfig()}
	}
	out := make([]byte, 0, len(f.Payload)+len(other.Payload))
	out = append(out, f.Payload...)
	out = append(out, other.Payload...)
	return Frame{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}, nil
}

// AppendInPlace appends other's payload onto f's own backing array (growing
// it if necessary) and returns the updated Frame. Use when f is not shared
// with another owner.
func (f Frame) AppendInPlace(other Frame) (Frame, error) {
	if !f.compatibleWith(other) {
		return Frame{}, &IncompatibleFormatError{Op: "append_in_place", Expected: f.StreamConfig(), Got: other.StreamConfig()}
	}
	f.Payload = append(f.Payload, other.Payload...)
	return f, nil
}

// Head returns a new Frame carrying the first nFrames multi-channel samples.
// nFrames is clamped to the available length; slicing never crosses a
// sample boundary.
func (f Frame) Head(nFrames int) Frame {
	bpf := f.bytesPerFrame()
	avail := f.FrameCount()
	if nFrames > avail {
		nFrames = avail
	}
	if nFrames < 0 {
		nFrames = 0
	}
	end := nFrames * bpf
	out := make([]byte, end)
	copy(out, f.Payload[:end])
	return Frame{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}
}

// Tail returns a new Frame carrying the last nFrames multi-channel samples.
func (f Frame) Tail(nFrames int) Frame {
	bpf := f.bytesPerFrame()
	avail := f.FrameCount()
	if nFrames > avail {
		nFrames = avail
	}
	if nFrames < 0 {
		nFrames = 0
	}
	start := (avail - nFrames) * bpf
	out := make([]byte, len(f.Payload)-start)
	copy(out, f.Payload[start:])
	return Frame{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}
}

// TailSeconds returns the last s seconds of audio as a new Frame.
func (f Frame) TailSeconds(s float64) Frame {
	n := int(math.Round(s * float64(f.SampleRateHz)))
	return f.Tail(n)
}

// Drop removes the first nFrames multi-channel samples and returns the rest.
func (f Frame) Drop(nFrames int) Frame {
	bpf := f.bytesPerFrame()
	avail := f.FrameCount()
	if nFrames > avail {
		nFrames = avail
	}
	if nFrames < 0 {
		nFrames = 0
	}
	start := nFrames * bpf
	out := make([]byte, len(f.Payload)-start)
	copy(out, f.Payload[start:])
	return Frame{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}
}

// ToPCM16LE converts the frame's payload to signed 16-bit little-endian,
// truncating the last partial sample (and logging a warning through log) if
// the payload length is not a multiple of the source sample size.
func (f Frame) ToPCM16LE(log *slog.Logger) Frame {
	sampleSize := f.Format.SampleSizeBytes()
	usable := (len(f.Payload) / sampleSize) * sampleSize
	if usable != len(f.Payload) && log != nil {
		log.Warn("truncating partial trailing sample on int16 conversion",
			"component", "audio.frame",
			"payload_bytes", len(f.Payload),
			"sample_size", sampleSize)
	}
	nSamples := usable / sampleSize
	out := make([]byte, nSamples*2)

	switch f.Format {
	case Int16:
		copy(out, f.Payload[:usable])
	case Float32:
		for i := 0; i < nSamples; i++ {
			bits := uint32(f.Payload[i*4]) | uint32(f.Payload[i*4+1])<<8 | uint32(f.Payload[i*4+2])<<16 | uint32(f.Payload[i*4+3])<<24
			v := math.Float32frombits(bits)
			putInt16LE(out[i*2:], floatToInt16(v))
		}
	case Int8:
		for i := 0; i < nSamples; i++ {
			s8 := int8(f.Payload[i])
			putInt16LE(out[i*2:], int16(s8)*256)
		}
	case Int24:
		for i := 0; i < nSamples; i++ {
			b0, b1, b2 := f.Payload[i*3], f.Payload[i*3+1], f.Payload[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF) // sign extend
			}
			putInt16LE(out[i*2:], int16(v>>8))
		}
	case Int32:
		for i := 0; i < nSamples; i++ {
			v := int32(f.Payload[i*4]) | int32(f.Payload[i*4+1])<<8 | int32(f.Payload[i*4+2])<<16 | int32(f.Payload[i*4+3])<<24
			putInt16LE(out[i*2:], int16(v>>16))
		}
	}

	return Frame{Format: Int16, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}
}

// floatToInt16 clamps v to [-1, 1], scales by 32767 and rounds to the
// nearest integer, ties to even.
func floatToInt16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	scaled := float64(v) * 32767.0
	rounded := math.RoundToEven(scaled)
	if rounded > 32767 {
		rounded = 32767
	} else if rounded < -32768 {
		rounded = -32768
	}
	return int16(rounded)
}

func putInt16LE(b []byte, v int16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
