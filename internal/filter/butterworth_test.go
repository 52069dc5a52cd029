package filter

import (
	"math"
	"testing"
)

func sineAt(freqHz, sampleRateHz float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRateHz)
	}
	return x
}

func rmsOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	const sr = 16000.0
	c := NewLowpass(4, 500, sr)
	x := sineAt(4000, sr, 4000)
	y := c.FiltFilt(x)
	if rmsOf(y) >= 0.5*rmsOf(x) {
		t.Fatalf("expected strong attenuation of a 4kHz tone through a 500Hz lowpass, got rms %f vs input %f", rmsOf(y), rmsOf(x))
	}
}

func TestLowpassPassesLowFrequency(t *testing.T) {
	const sr = 16000.0
	c := NewLowpass(4, 2000, sr)
	x := sineAt(200, sr, 4000)
	y := c.FiltFilt(x)
	if rmsOf(y) < 0.7*rmsOf(x) {
		t.Fatalf("expected a 200Hz tone to pass a 2kHz lowpass mostly unattenuated, got rms %f vs input %f", rmsOf(y), rmsOf(x))
	}
}

func TestHighpassAttenuatesLowFrequency(t *testing.T) {
	const sr = 16000.0
	c := NewHighpass(4, 1000, sr)
	x := sineAt(50, sr, 4000)
	y := c.FiltFilt(x)
	if rmsOf(y) >= 0.5*rmsOf(x) {
		t.Fatalf("expected strong attenuation of a 50Hz tone through a 1kHz highpass, got rms %f vs input %f", rmsOf(y), rmsOf(x))
	}
}

func TestOddOrderRoundsUpToEven(t *testing.T) {
	c := NewLowpass(3, 500, 16000)
	if len(c.sections) != 2 {
		t.Fatalf("expected order 3 to round up to 4 (2 sections), got %d sections", len(c.sections))
	}
}

func TestFiltFiltPreservesLength(t *testing.T) {
	c := NewLowpass(4, 500, 16000)
	x := sineAt(100, 16000, 777)
	y := c.FiltFilt(x)
	if len(y) != len(x) {
		t.Fatalf("FiltFilt changed length: got %d, want %d", len(y), len(x))
	}
}
