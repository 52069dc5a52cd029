package processors

import (
	"context"
	"math"
	"sync"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
)

// Normalizer concatenates every buffered Frame per emit and applies peak
// normalization to a target headroom below 0 dBFS, preserving format and
// rate (spec §4.6).
type Normalizer struct {
	name     string
	headroom float64 // dB below full scale

	mu      sync.Mutex
	pending []audio.Frame
}

// NewNormalizer returns a Normalizer targeting headroomDB below full scale.
func NewNormalizer(name string, headroomDB float64) *Normalizer {
	return &Normalizer{name: name, headroom: headroomDB}
}

func (n *Normalizer) Name() string { return n.name }

func (n *Normalizer) Receive(source string, f audio.Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, f)
	return nil
}

func (n *Normalizer) Emit(ctx context.Context) (*audio.Frame, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) == 0 {
		return nil, nil
	}

	merged := n.pending[0].Clone()
	for _, f := range n.pending[1:] {
		var err error
		merged, err = merged.AppendInPlace(f)
		if err != nil {
			return nil, &graph.ProtocolError{Node: n.name, Err: err}
		}
	}
	n.pending = n.pending[:0]

	out := peakNormalize(merged, n.headroom)
	return &out, nil
}

// peakNormalize scales f's samples so the loudest sample sits exactly at
// headroomDB below full scale, operating in float32 and re-encoding at f's
// original format.
func peakNormalize(f audio.Frame, headroomDB float64) audio.Frame {
	asFloat := f
	if f.Format != audio.Float32 {
		asFloat = f.ToFloat32()
	}
	samples := asFloat.Float32Samples()

	var peak float32
	for _, s := range samples {
		if abs := float32(math.Abs(float64(s))); abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return f
	}

	target := float32(math.Pow(10, -headroomDB/20))
	gain := target / peak
	for i := range samples {
		v := samples[i] * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = v
	}

	out := audio.FrameFromFloat32(samples, asFloat.SampleRateHz, asFloat.Channels)
	if f.Format == audio.Float32 {
		return out
	}
	return reencodeFromFloat32(out, f.Format)
}
