// Package stft provides the Hann-windowed short-time Fourier transform and
// overlap-add inverse used by the WPE dereverberator and the spectral
// denoiser. Frames are analyzed with a real-input FFT (only the
// nFFT/2+1 non-redundant bins are kept) and resynthesized through the
// conjugate-symmetric inverse, matching the rfft/irfft convention the
// reverberation and denoising algorithms were modeled on.
package stft

import "math"

// Analyzer holds a fixed frame size / hop and its Hann window, and performs
// STFT analysis and COLA-normalized overlap-add synthesis for that
// configuration. The zero value is not usable; use NewAnalyzer.
type Analyzer struct {
	nFFT int
	hop  int
	win  []float64
}

// NewAnalyzer returns an Analyzer for nFFT-point frames hopped by hop
// samples, periodic Hann windowed. nFFT is rounded up to the next power of
// two (the FFT implementation is radix-2 only).
func NewAnalyzer(nFFT, hop int) *Analyzer {
	nFFT = nextPow2(nFFT)
	win := make([]float64, nFFT)
	for i := range win {
		// periodic (fftbins=True) Hann, matching scipy.signal.get_window.
		win[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(nFFT))
	}
	return &Analyzer{nFFT: nFFT, hop: hop, win: win}
}

// NFFT returns the (possibly rounded-up) frame size.
func (a *Analyzer) NFFT() int { return a.nFFT }

// Hop returns the hop size.
func (a *Analyzer) Hop() int { return a.hop }

// Bins returns the number of non-redundant rFFT bins per frame.
func (a *Analyzer) Bins() int { return a.nFFT/2 + 1 }

// PadLeft is the left zero-pad applied before framing, so the first
// window's center sits inside the signal.
func (a *Analyzer) PadLeft() int { return a.nFFT - a.hop }

// Frames pads x left/right to a whole number of hops, windows and rFFTs
// each nFFT-sample frame, and returns the T resulting Bins()-length spectra.
func (a *Analyzer) Frames(x []float64) [][]complex128 {
	padLeft := a.PadLeft()
	padRight := mod(-(len(x)+padLeft-a.nFFT), a.hop)
	padded := make([]float64, padLeft+len(x)+padRight)
	copy(padded[padLeft:], x)

	t := 1 + (len(padded)-a.nFFT)/a.hop
	frames := make([][]complex128, t)
	for i := 0; i < t; i++ {
		start := i * a.hop
		windowed := make([]complex128, a.nFFT)
		for k := 0; k < a.nFFT; k++ {
			windowed[k] = complex(padded[start+k]*a.win[k], 0)
		}
		fft(windowed, false)
		frames[i] = windowed[:a.Bins()]
	}
	return frames
}

// OLA reconstructs a real signal of length nFFT+hop*(len(frames)-1) from
// rFFT frames via inverse FFT, Hann re-window, and per-sample
// sum-of-window-squares normalization (COLA-OLA). Callers slice the region
// they need out of the result (e.g. PadLeft : PadLeft+inputLen to undo the
// analysis padding).
func (a *Analyzer) OLA(frames [][]complex128) []float64 {
	t := len(frames)
	if t == 0 {
		return nil
	}
	length := a.nFFT + a.hop*(t-1)
	y := make([]float64, length)
	weights := make([]float64, length)

	full := make([]complex128, a.nFFT)
	for i, spec := range frames {
		hermitianExpand(spec, a.nFFT, full)
		fft(full, true)
		start := i * a.hop
		for k := 0; k < a.nFFT; k++ {
			y[start+k] += real(full[k]) * a.win[k]
			weights[start+k] += a.win[k] * a.win[k]
		}
	}
	for i := range y {
		w := weights[i]
		if w < 1e-8 {
			w = 1e-8
		}
		y[i] /= w
	}
	return y
}

// hermitianExpand rebuilds the full nFFT-length conjugate-symmetric spectrum
// from its nFFT/2+1 non-redundant bins into dst.
func hermitianExpand(bins []complex128, nFFT int, dst []complex128) {
	copy(dst[:len(bins)], bins)
	for k := len(bins); k < nFFT; k++ {
		dst[k] = complexConj(bins[nFFT-k])
	}
}

func complexConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
