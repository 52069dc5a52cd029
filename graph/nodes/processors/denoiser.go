package processors

import (
	"context"
	"math"
	"math/cmplx"
	"sync"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/internal/stft"
)

const (
	denoiserNFFT = 1024
	denoiserHop  = 512
)

// Denoiser is a Hann-windowed STFT spectral-subtraction noise suppressor
// (spec §4.7): per frame, bins quieter than threshold * mean(|X|) are
// floored to 0.1 * |X|, then the result is reconstructed via OLA and
// peak-normalized to 0.9 of full scale in the native integer format.
type Denoiser struct {
	name      string
	threshold float64
	analyzer  *stft.Analyzer

	mu      sync.Mutex
	pending []audio.Frame
}

// NewDenoiser returns a Denoiser using threshold as the noise-floor
// multiplier.
func NewDenoiser(name string, threshold float64) *Denoiser {
	return &Denoiser{name: name, threshold: threshold, analyzer: stft.NewAnalyzer(denoiserNFFT, denoiserHop)}
}

func (d *Denoiser) Name() string { return d.name }

func (d *Denoiser) Receive(source string, f audio.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, f)
	return nil
}

func (d *Denoiser) Emit(ctx context.Context) (*audio.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, nil
	}

	merged := d.pending[0].Clone()
	for _, f := range d.pending[1:] {
		var err error
		merged, err = merged.AppendInPlace(f)
		if err != nil {
			return nil, &graph.ProtocolError{Node: d.name, Err: err}
		}
	}
	d.pending = d.pending[:0]

	nativeFormat := merged.Format
	asFloat := merged
	if merged.Format != audio.Float32 {
		asFloat = merged.ToFloat32()
	}
	samples := asFloat.Float32Samples()
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}

	frames := d.analyzer.Frames(x)
	for _, frame := range frames {
		var meanMag float64
		for _, bin := range frame {
			meanMag += cmplx.Abs(bin)
		}
		meanMag /= float64(len(frame))
		floor := d.threshold * meanMag

		for i, bin := range frame {
			mag := cmplx.Abs(bin)
			if mag < floor {
				target := 0.1 * mag
				if mag > 0 {
					frame[i] = bin * complex(target/mag, 0)
				}
			}
		}
	}

	y := d.analyzer.OLA(frames)
	padLeft := d.analyzer.PadLeft()
	end := padLeft + len(x)
	if end > len(y) {
		end = len(y)
	}
	reconstructed := y[padLeft:end]

	peakNormalizeFloat64(reconstructed, 0.9)

	out32 := make([]float32, len(reconstructed))
	for i, v := range reconstructed {
		out32[i] = float32(v)
	}
	outFrame := audio.FrameFromFloat32(out32, asFloat.SampleRateHz, asFloat.Channels)
	if nativeFormat == audio.Float32 {
		return &outFrame, nil
	}
	reencoded := reencodeFromFloat32(outFrame, nativeFormat)
	return &reencoded, nil
}

// peakNormalizeFloat64 scales samples in place so the loudest sample's
// magnitude equals target (a fraction of [-1, 1] full scale).
func peakNormalizeFloat64(samples []float64, target float64) {
	var peak float64
	for _, s := range samples {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return
	}
	gain := target / peak
	for i := range samples {
		samples[i] *= gain
	}
}
