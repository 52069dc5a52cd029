package wpe

import (
	"math"
	"testing"
)

const testSampleRate = 16000

// rms returns the root-mean-square of the slice.
func rms(s []float32) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(s)))
}

// sinChunk generates a sine wave chunk at the given frequency, continuing
// the phase from chunkIdx*len(out) samples.
func sinChunk(freq float64, chunkIdx, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		t := float64(chunkIdx*n+i) / float64(testSampleRate)
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

// TestProcessOutputBounded verifies Process never produces samples outside
// [-1, 1], the clip range the spec requires of the dereverberated signal.
func TestProcessOutputBounded(t *testing.T) {
	p := New(testSampleRate)
	for i := range 20 {
		chunk := sinChunk(220, i, 2048)
		out := p.Process(chunk)
		for j, v := range out {
			if v < -1 || v > 1 {
				t.Errorf("chunk %d sample %d out of bounds: %v", i, j, v)
			}
		}
	}
}

// TestProcessPreservesLength verifies the output chunk length always
// matches the input chunk length regardless of STFT framing.
func TestProcessPreservesLength(t *testing.T) {
	p := New(testSampleRate)
	for _, n := range []int{256, 1000, 4096} {
		out := p.Process(sinChunk(300, 0, n))
		if len(out) != n {
			t.Errorf("n=%d: expected output length %d, got %d", n, n, len(out))
		}
	}
}

// TestZeroWetIsPassthrough verifies wet=0 reproduces the input unchanged
// (within floating-point tolerance), since the wet/dry mix should collapse
// to the dry signal.
func TestZeroWetIsPassthrough(t *testing.T) {
	p := NewWithParams(testSampleRate, DefaultNFFT, DefaultHop, DefaultTaps, DefaultDelay, DefaultAlpha, 0.0)
	chunk := sinChunk(440, 0, 2048)
	original := make([]float32, len(chunk))
	copy(original, chunk)

	out := p.Process(chunk)

	for i, v := range out {
		if math.Abs(float64(v-original[i])) > 1e-5 {
			t.Errorf("sample %d: expected %v, got %v", i, original[i], v)
		}
	}
}

// TestStatePersistsAcrossChunks verifies the filter taps adapt (change from
// their zero initial value) as more chunks of correlated signal are pushed
// through the same Processor.
func TestStatePersistsAcrossChunks(t *testing.T) {
	p := New(testSampleRate)
	for i := range 10 {
		p.Process(sinChunk(300, i, 2048))
	}

	anyNonZero := false
	for _, bin := range p.filterTaps {
		for _, w := range bin {
			if w != 0 {
				anyNonZero = true
				break
			}
		}
	}
	if !anyNonZero {
		t.Fatal("expected non-zero filter taps after adaptation")
	}
}

// TestQuietSignalStaysQuiet verifies that processing near-silence does not
// blow up the adaptive state into producing a loud output.
func TestQuietSignalStaysQuiet(t *testing.T) {
	p := New(testSampleRate)
	quiet := make([]float32, 2048)
	for i := range quiet {
		quiet[i] = 0.001
	}
	var out []float32
	for i := 0; i < 5; i++ {
		out = p.Process(quiet)
	}
	if rms(out) > 0.1 {
		t.Errorf("expected quiet output, got rms=%v", rms(out))
	}
}
