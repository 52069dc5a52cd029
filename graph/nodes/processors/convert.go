package processors

import (
	"math"

	"github.com/aineurostream/synchro/audio"
)

// reencodeFromFloat32 re-quantizes a FLOAT32 frame into target's native
// integer width, clamping to the representable range. Several processors
// in this package (normalizer, denoiser) operate on FLOAT32 internally but
// must hand back the caller's original integer format.
func reencodeFromFloat32(f audio.Frame, target audio.Format) audio.Frame {
	samples := f.Float32Samples()
	size := target.SampleSizeBytes()
	out := make([]byte, len(samples)*size)

	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		off := i * size
		switch target {
		case audio.Int8:
			out[off] = byte(int8(math.RoundToEven(v * 127)))
		case audio.Int16:
			scaled := int32(math.RoundToEven(v * 32767))
			u := uint16(int16(scaled))
			out[off], out[off+1] = byte(u), byte(u>>8)
		case audio.Int24:
			scaled := int32(math.RoundToEven(v * 8388607))
			u := uint32(scaled)
			out[off], out[off+1], out[off+2] = byte(u), byte(u>>8), byte(u>>16)
		case audio.Int32:
			scaled := int64(math.RoundToEven(v * 2147483647))
			u := uint32(int32(scaled))
			out[off], out[off+1], out[off+2], out[off+3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
		default:
			bits := math.Float32bits(s)
			out[off], out[off+1], out[off+2], out[off+3] = byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24)
		}
	}
	return audio.Frame{Format: target, SampleRateHz: f.SampleRateHz, Channels: f.Channels, Payload: out}
}
