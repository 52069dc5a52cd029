package audio

import "testing"

func TestFrameCountAndMalformed(t *testing.T) {
	f := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 10)}
	if f.FrameCount() != 5 {
		t.Errorf("FrameCount: got %d, want 5", f.FrameCount())
	}
	if f.Malformed() {
		t.Error("expected well-formed frame")
	}

	bad := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 3)}
	if !bad.Malformed() {
		t.Error("expected malformed frame (odd byte count for int16)")
	}
}

func TestDurationMs(t *testing.T) {
	f := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 16000*2)}
	if got := f.DurationMs(); got != 1000 {
		t.Errorf("DurationMs: got %v, want 1000", got)
	}
}

func TestAppendLengthAdditivity(t *testing.T) {
	a := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 10)}
	b := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 20)}
	out, err := a.Append(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.FrameCount() != a.FrameCount()+b.FrameCount() {
		t.Errorf("append length: got %d, want %d", out.FrameCount(), a.FrameCount()+b.FrameCount())
	}
}

func TestAppendIncompatibleFormat(t *testing.T) {
	a := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 10)}
	b := Frame{Format: Float32, SampleRateHz: 16000, Channels: 1, Payload: make([]byte, 20)}
	if _, err := a.Append(b); err == nil {
		t.Fatal("expected IncompatibleFormatError")
	} else if _, ok := err.(*IncompatibleFormatError); !ok {
		t.Errorf("expected *IncompatibleFormatError, got %T", err)
	}
}

func TestHeadTailNeverCrossSampleBoundary(t *testing.T) {
	f := FrameFromInt16([]int16{1, 2, 3, 4, 5}, 16000, 1)
	h := f.Head(2)
	if h.FrameCount() != 2 || len(h.Payload)%2 != 0 {
		t.Errorf("head: unexpected frame %v", h)
	}
	tl := f.Tail(2)
	if got := tl.Int16Samples(); len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("tail: got %v, want [4 5]", got)
	}
}

func TestInt16RoundTripExact(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234, -5678}
	f := FrameFromInt16(samples, 16000, 1)
	back := f.ToFloat32().ToPCM16LE(nil)
	got := back.Int16Samples()
	for i, s := range samples {
		if got[i] != s {
			t.Errorf("sample %d: got %d, want %d", i, got[i], s)
		}
	}
}

func TestFloat32RoundTripWithinOneLSB(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, -0.999, 0.1234}
	f := FrameFromFloat32(samples, 16000, 1)
	i16 := f.ToPCM16LE(nil)
	back := i16.ToFloat32().Float32Samples()
	const lsb = 1.0 / 32768.0
	for i, s := range samples {
		diff := float64(back[i]) - float64(s)
		if diff < 0 {
			diff = -diff
		}
		if diff > lsb {
			t.Errorf("sample %d: got %v, want ~%v (diff %v > 1 LSB)", i, back[i], s, diff)
		}
	}
}

func TestToPCM16LETruncatesPartialSample(t *testing.T) {
	f := Frame{Format: Int16, SampleRateHz: 16000, Channels: 1, Payload: []byte{1, 2, 3}}
	out := f.ToPCM16LE(nil)
	if len(out.Payload) != 2 {
		t.Errorf("expected truncated payload of 2 bytes, got %d", len(out.Payload))
	}
}

func TestDownmixMean(t *testing.T) {
	// Two channels, two frames: (1.0, -1.0), (0.5, 0.5)
	stereo := FrameFromFloat32([]float32{1.0, -1.0, 0.5, 0.5}, 48000, 2)
	mono := stereo.DownmixFloat32(MonoMean, 0)
	if mono.Channels != 1 {
		t.Fatalf("expected mono, got %d channels", mono.Channels)
	}
	samples := mono.Float32Samples()
	if samples[0] != 0 || samples[1] != 0.5 {
		t.Errorf("got %v, want [0 0.5]", samples)
	}
}

func TestSilenceIsZeroed(t *testing.T) {
	f := Silence(Int16, 16000, 1, 100)
	if f.FrameCount() != 100 {
		t.Errorf("expected 100 frames, got %d", f.FrameCount())
	}
	for _, b := range f.Payload {
		if b != 0 {
			t.Fatal("expected all-zero payload")
		}
	}
}
