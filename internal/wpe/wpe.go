// Package wpe implements Online Weighted Prediction Error dereverberation:
// a per-frequency-bin recursive least-squares predictor of late reflections,
// applied frame-by-frame over a short-time Fourier transform so it can run
// inside the whisper-prep processing chain alongside the rest of the
// pipeline (spec §4.9.1).
//
// Usage:
//
//	p := wpe.New(16000)
//	clean := p.Process(wet) // wet and clean are float32 PCM in [-1,1]
package wpe

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/aineurostream/synchro/internal/stft"
)

const (
	// DefaultNFFT is the STFT frame size in samples.
	DefaultNFFT = 1024
	// DefaultHop is the STFT hop size in samples.
	DefaultHop = 512
	// DefaultTaps is the number of prediction filter taps per bin.
	DefaultTaps = 12
	// DefaultDelay is the prediction delay in STFT frames: taps predict the
	// reflection arriving DefaultDelay frames after the most recent one.
	DefaultDelay = 3
	// DefaultAlpha is the forgetting factor for the recursive PSD and
	// inverse-covariance updates (closer to 1 adapts more slowly).
	DefaultAlpha = 0.92
	// DefaultWet is the dry/wet mix applied to the dereverberated output.
	DefaultWet = 0.85

	defaultDenFloor  = 1e-6
	defaultPSDFloor  = 1e-7
	defaultGainClip  = 5.0
	defaultPowerInit = 1e-4
)

// Processor runs Online WPE over successive chunks of a single audio
// stream. State (filter taps, inverse covariance, PSD estimate, and the
// spectral history ring) persists across calls to Process, so a Processor
// must be dedicated to one source.
type Processor struct {
	mu sync.Mutex

	sr                           int
	taps, delay                  int
	alpha, wet                   float64
	denFloor, psdFloor, gainClip float64
	analyzer                     *stft.Analyzer

	// Per-bin state; outer index is the frequency bin (0..bins-1).
	invCov     [][][]complex128 // [bin][taps][taps], initialized to identity
	filterTaps [][]complex128   // [bin][taps]
	powerEst   []float64        // [bin]
	inputBuf   [][]complex128   // [taps+delay+1][bin], most recent frame last

	initialized bool
}

// New returns a Processor for sampleRateHz audio with the spec's default
// hyperparameters.
func New(sampleRateHz int) *Processor {
	return NewWithParams(sampleRateHz, DefaultNFFT, DefaultHop, DefaultTaps, DefaultDelay, DefaultAlpha, DefaultWet)
}

// NewWithParams returns a Processor with explicit STFT and adaptation
// parameters.
func NewWithParams(sampleRateHz, nFFT, hop, taps, delay int, alpha, wet float64) *Processor {
	if wet < 0 {
		wet = 0
	} else if wet > 1 {
		wet = 1
	}
	return &Processor{
		sr:       sampleRateHz,
		taps:     taps,
		delay:    delay,
		alpha:    alpha,
		wet:      wet,
		denFloor: defaultDenFloor,
		psdFloor: defaultPSDFloor,
		gainClip: defaultGainClip,
		analyzer: stft.NewAnalyzer(nFFT, hop),
	}
}

func (p *Processor) ensureInit(bins int) {
	if p.initialized {
		return
	}
	p.invCov = make([][][]complex128, bins)
	p.filterTaps = make([][]complex128, bins)
	p.powerEst = make([]float64, bins)
	p.inputBuf = make([][]complex128, p.taps+p.delay+1)
	for row := range p.inputBuf {
		p.inputBuf[row] = make([]complex128, bins)
	}
	for f := 0; f < bins; f++ {
		m := make([][]complex128, p.taps)
		for i := range m {
			m[i] = make([]complex128, p.taps)
			m[i][i] = 1
		}
		p.invCov[f] = m
		p.filterTaps[f] = make([]complex128, p.taps)
		p.powerEst[f] = defaultPowerInit
	}
	p.initialized = true
}

// Process dereverberates one chunk of float32 PCM and returns a
// same-length chunk: a wet/dry mix of the predicted early-reflection
// signal with the original, clipped to [-1, 1].
func (p *Processor) Process(x []float32) []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	xf64 := make([]float64, len(x))
	for i, s := range x {
		xf64[i] = float64(s)
	}

	frames := p.analyzer.Frames(xf64)
	bins := p.analyzer.Bins()
	p.ensureInit(bins)

	outSpec := make([][]complex128, len(frames))
	for t, frame := range frames {
		outSpec[t] = p.step(frame)
	}

	wet := p.analyzer.OLA(outSpec)
	padLeft := p.analyzer.PadLeft()
	out := make([]float32, len(x))
	for i := range out {
		idx := padLeft + i
		var wetSample float64
		if idx < len(wet) {
			wetSample = wet[idx]
		}
		mixed := p.wet*wetSample + (1-p.wet)*xf64[i]
		out[i] = float32(clip(mixed, -1, 1))
	}
	return out
}

// step advances the per-bin recursive WPE state by one STFT frame and
// returns the predicted early-reflection spectrum for that frame.
func (p *Processor) step(frame []complex128) []complex128 {
	bins := len(frame)
	pred := make([]complex128, bins)

	// Shift the spectral history ring and append the new frame.
	for row := 0; row < len(p.inputBuf)-1; row++ {
		copy(p.inputBuf[row], p.inputBuf[row+1])
	}
	copy(p.inputBuf[len(p.inputBuf)-1], frame)

	for f := 0; f < bins; f++ {
		// Smoothed power estimate with a floor, updated before use.
		pe := p.powerEst[f]
		if pe < p.psdFloor {
			pe = p.psdFloor
		}
		mag := cmplx.Abs(frame[f])
		pe = p.alpha*pe + (1-p.alpha)*mag*mag
		p.powerEst[f] = pe

		// window[k] = input_buf[taps-1-k][f], the taps rows preceding the
		// delay gap, most recent first.
		window := make([]complex128, p.taps)
		for k := 0; k < p.taps; k++ {
			window[k] = p.inputBuf[p.taps-1-k][f]
		}
		latest := p.inputBuf[len(p.inputBuf)-1][f]

		filt := p.filterTaps[f]
		var predicted complex128
		for k := 0; k < p.taps; k++ {
			predicted += cmplx.Conj(filt[k]) * window[k]
		}
		pred[f] = latest - predicted

		inv := p.invCov[f]
		nominator := make([]complex128, p.taps)
		for i := 0; i < p.taps; i++ {
			var s complex128
			for j := 0; j < p.taps; j++ {
				s += inv[i][j] * window[j]
			}
			nominator[i] = s
		}
		var denom complex128
		for k := 0; k < p.taps; k++ {
			denom += cmplx.Conj(window[k]) * nominator[k]
		}
		denomReal := p.alpha*pe + real(denom)
		if denomReal < p.denFloor {
			denomReal = p.denFloor
		}

		kalman := make([]complex128, p.taps)
		var normSq float64
		for k := 0; k < p.taps; k++ {
			kalman[k] = nominator[k] / complex(denomReal, 0)
			normSq += real(kalman[k])*real(kalman[k]) + imag(kalman[k])*imag(kalman[k])
		}
		if p.gainClip > 0 {
			norm := math.Sqrt(normSq) + 1e-12
			scale := 1.0
			if p.gainClip/norm < scale {
				scale = p.gainClip / norm
			}
			for k := range kalman {
				kalman[k] *= complex(scale, 0)
			}
		}

		// v[m] = sum_j conj(window[j]) * invCov[j][m]
		v := make([]complex128, p.taps)
		for m := 0; m < p.taps; m++ {
			var s complex128
			for j := 0; j < p.taps; j++ {
				s += cmplx.Conj(window[j]) * inv[j][m]
			}
			v[m] = s
		}
		newInv := make([][]complex128, p.taps)
		for i := 0; i < p.taps; i++ {
			newInv[i] = make([]complex128, p.taps)
			for m := 0; m < p.taps; m++ {
				newInv[i][m] = (inv[i][m] - kalman[i]*v[m]) / complex(p.alpha, 0)
			}
		}
		p.invCov[f] = newInv

		predConj := cmplx.Conj(pred[f])
		for k := 0; k < p.taps; k++ {
			filt[k] += kalman[k] * predConj
		}
	}
	return pred
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
