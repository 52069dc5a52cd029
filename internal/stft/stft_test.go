package stft

import (
	"math"
	"testing"
)

func sineSignal(freq float64, sr, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sr))
	}
	return out
}

// TestOLARoundTripReconstructsSignal verifies that analyzing a signal and
// immediately resynthesizing it (no spectral modification) reproduces the
// original within a small tolerance, once the analysis padding is sliced off.
func TestOLARoundTripReconstructsSignal(t *testing.T) {
	a := NewAnalyzer(1024, 512)
	sig := sineSignal(440, 16000, 8000)

	frames := a.Frames(sig)
	recon := a.OLA(frames)

	padLeft := a.PadLeft()
	var maxErr float64
	for i, want := range sig {
		got := recon[padLeft+i]
		if d := math.Abs(got - want); d > maxErr {
			maxErr = d
		}
	}
	if maxErr > 1e-6 {
		t.Errorf("round-trip max error too large: %v", maxErr)
	}
}

// TestNFFTRoundsUpToPowerOfTwo verifies the radix-2 FFT constraint is
// enforced by rounding, not by rejecting the caller's size.
func TestNFFTRoundsUpToPowerOfTwo(t *testing.T) {
	a := NewAnalyzer(1000, 500)
	if a.NFFT() != 1024 {
		t.Errorf("expected nFFT rounded up to 1024, got %d", a.NFFT())
	}
}

// TestBinsIsHalfPlusOne verifies the rFFT bin count matches nFFT/2+1.
func TestBinsIsHalfPlusOne(t *testing.T) {
	a := NewAnalyzer(1024, 512)
	if a.Bins() != 513 {
		t.Errorf("expected 513 bins, got %d", a.Bins())
	}
	for _, f := range a.Frames(sineSignal(100, 8000, 4000)) {
		if len(f) != 513 {
			t.Fatalf("frame has %d bins, want 513", len(f))
		}
	}
}
