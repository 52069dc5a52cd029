package wavio

import (
	"path/filepath"
	"testing"

	"github.com/aineurostream/synchro/audio"
)

func TestWriteReadRoundTripInt16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f := audio.FrameFromInt16([]int16{100, -200, 300, -400, 32767, -32768}, 16000, 1)

	if err := WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.SampleRateHz != 16000 || got.Channels != 1 || got.Format != audio.Int16 {
		t.Fatalf("unexpected stream config: %+v", got.StreamConfig())
	}
	gotSamples := got.Int16Samples()
	want := f.Int16Samples()
	if len(gotSamples) != len(want) {
		t.Fatalf("sample count: want %d, got %d", len(want), len(gotSamples))
	}
	for i := range want {
		if gotSamples[i] != want[i] {
			t.Errorf("sample %d: want %d, got %d", i, want[i], gotSamples[i])
		}
	}
}

func TestWriteReadRoundTripFloat32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone_f32.wav")
	f := audio.FrameFromFloat32([]float32{0.1, -0.2, 0.3, -0.4, 0.999}, 48000, 1)

	if err := WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Format != audio.Float32 || got.SampleRateHz != 48000 {
		t.Fatalf("unexpected stream config: %+v", got.StreamConfig())
	}
	gotSamples := got.Float32Samples()
	want := f.Float32Samples()
	if len(gotSamples) != len(want) {
		t.Fatalf("sample count: want %d, got %d", len(want), len(gotSamples))
	}
	for i := range want {
		if d := gotSamples[i] - want[i]; d > 1e-6 || d < -1e-6 {
			t.Errorf("sample %d: want %v, got %v", i, want[i], gotSamples[i])
		}
	}
}

func TestWriteReadRoundTripStereoInt24(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo24.wav")
	payload := make([]byte, 0)
	// Two stereo frames, INT24 little-endian: L=100, R=-100, L=200, R=-200.
	for _, v := range []int32{100, -100, 200, -200} {
		payload = append(payload, byte(v), byte(v>>8), byte(v>>16))
	}
	f := audio.Frame{Format: audio.Int24, SampleRateHz: 44100, Channels: 2, Payload: payload}

	if err := WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Channels != 2 || got.Format != audio.Int24 || got.FrameCount() != 2 {
		t.Fatalf("unexpected result: %+v frameCount=%d", got.StreamConfig(), got.FrameCount())
	}
}
