package audio

import "math"

// ToFloat32 converts the frame's payload to FLOAT32 samples in [-1, 1],
// using the inverse of the rules in ToPCM16LE (spec §4.1/§4.2). Channel
// count and sample rate are preserved.
func (f Frame) ToFloat32() Frame {
	sampleSize := f.Format.SampleSizeBytes()
	if sampleSize == 0 {
		return Frame{Format: Float32, SampleRateHz: f.SampleRateHz, Channels: f.Channels}
	}
	usable := (len(f.Payload) / sampleSize) * sampleSize
	nSamples := usable / sampleSize
	out := make([]byte, nSamples*4)

	putF32 := func(i int, v float32) {
		bits := math.Float32bits(v)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}

	switch f.Format {
	case Float32:
		copy(out, f.Payload[:usable])
	case Int16:
		for i := 0; i < nSamples; i++ {
			v := int16(uint16(f.Payload[i*2]) | uint16(f.Payload[i*2+1])<<8)
			x := float32(v) / 32767.0
			if x < -1 {
				x = -1
			}
			putF32(i, x)
		}
	case Int8:
		for i := 0; i < nSamples; i++ {
			v := int8(f.Payload[i])
			putF32(i, float32(v)/128.0)
		}
	case Int24:
		for i := 0; i < nSamples; i++ {
			b0, b1, b2 := f.Payload[i*3], f.Payload[i*3+1], f.Payload[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			putF32(i, float32(v)/8388608.0)
		}
	case Int32:
		for i := 0; i < nSamples; i++ {
			v := int32(f.Payload[i*4]) | int32(f.Payload[i*4+1])<<8 | int32(f.Payload[i*4+2])<<16 | int32(f.Payload[i*4+3])<<24
			putF32(i, float32(float64(v)/2147483648.0))
		}
	}

	return Frame{Format: Float32, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}
}

// MonoStrategy selects how a multi-channel input is folded down to mono.
type MonoStrategy int

const (
	MonoMean MonoStrategy = iota
	MonoSelect
)

// DownmixFloat32 reads f (which must be Float32 with f.Channels channels)
// and returns a new mono Float32 Frame, either averaging all channels
// (MonoMean) or picking a single channel index (MonoSelect), then clipping
// to [-1, 1].
func (f Frame) DownmixFloat32(strategy MonoStrategy, selectChannel int) Frame {
	if f.Channels <= 1 {
		return f.clipFloat32()
	}
	nFrames := f.FrameCount()
	out := make([]byte, nFrames*4)

	readSample := func(frameIdx, ch int) float32 {
		off := (frameIdx*f.Channels + ch) * 4
		bits := uint32(f.Payload[off]) | uint32(f.Payload[off+1])<<8 | uint32(f.Payload[off+2])<<16 | uint32(f.Payload[off+3])<<24
		return math.Float32frombits(bits)
	}
	writeSample := func(frameIdx int, v float32) {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		bits := math.Float32bits(v)
		off := frameIdx * 4
		out[off] = byte(bits)
		out[off+1] = byte(bits >> 8)
		out[off+2] = byte(bits >> 16)
		out[off+3] = byte(bits >> 24)
	}

	switch strategy {
	case MonoSelect:
		ch := selectChannel
		if ch < 0 || ch >= f.Channels {
			ch = 0
		}
		for i := 0; i < nFrames; i++ {
			writeSample(i, readSample(i, ch))
		}
	default: // MonoMean
		for i := 0; i < nFrames; i++ {
			var sum float32
			for ch := 0; ch < f.Channels; ch++ {
				sum += readSample(i, ch)
			}
			writeSample(i, sum/float32(f.Channels))
		}
	}

	return Frame{Format: Float32, SampleRateHz: f.SampleRateHz, Channels: 1, Payload: out}
}

// clipFloat32 clamps every sample in a mono/multi-channel Float32 frame to
// [-1, 1] in place, returning f.
func (f Frame) clipFloat32() Frame {
	if f.Format != Float32 {
		return f
	}
	n := len(f.Payload) / 4
	for i := 0; i < n; i++ {
		off := i * 4
		bits := uint32(f.Payload[off]) | uint32(f.Payload[off+1])<<8 | uint32(f.Payload[off+2])<<16 | uint32(f.Payload[off+3])<<24
		v := math.Float32frombits(bits)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		nb := math.Float32bits(v)
		f.Payload[off] = byte(nb)
		f.Payload[off+1] = byte(nb >> 8)
		f.Payload[off+2] = byte(nb >> 16)
		f.Payload[off+3] = byte(nb >> 24)
	}
	return f
}

// Float32Samples decodes a Float32 Frame's payload into a plain []float32
// slice for DSP code that wants to operate on samples directly.
func (f Frame) Float32Samples() []float32 {
	n := len(f.Payload) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * 4
		bits := uint32(f.Payload[off]) | uint32(f.Payload[off+1])<<8 | uint32(f.Payload[off+2])<<16 | uint32(f.Payload[off+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// FrameFromFloat32 builds a Frame from raw float32 samples.
func FrameFromFloat32(samples []float32, sampleRateHz, channels int) Frame {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		bits := math.Float32bits(v)
		off := i * 4
		out[off] = byte(bits)
		out[off+1] = byte(bits >> 8)
		out[off+2] = byte(bits >> 16)
		out[off+3] = byte(bits >> 24)
	}
	return Frame{Format: Float32, SampleRateHz: sampleRateHz, Channels: channels, Payload: out}
}

// Int16Samples decodes an Int16 Frame's payload into a plain []int16 slice.
func (f Frame) Int16Samples() []int16 {
	n := len(f.Payload) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(f.Payload[i*2]) | uint16(f.Payload[i*2+1])<<8)
	}
	return out
}

// FrameFromInt16 builds a Frame from raw int16 samples.
func FrameFromInt16(samples []int16, sampleRateHz, channels int) Frame {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		putInt16LE(out[i*2:], v)
	}
	return Frame{Format: Int16, SampleRateHz: sampleRateHz, Channels: channels, Payload: out}
}

// Silence returns a Frame of nFrames all-zero multi-channel samples in the
// given format/rate/channels.
func Silence(format Format, sampleRateHz, channels, nFrames int) Frame {
	return Frame{Format: format, SampleRateHz: sampleRateHz, Channels: channels,
		Payload: make([]byte, nFrames*format.SampleSizeBytes()*channels)}
}
