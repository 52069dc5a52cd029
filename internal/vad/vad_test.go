package vad

import "testing"

func TestNotEnoughInfoUntilBufferFull(t *testing.T) {
	d := NewWithParams(1000, 1.0, 100) // 1000 samples needed

	if got := d.Push(make([]int16, 500)); got != NotEnoughInfo {
		t.Errorf("expected NotEnoughInfo, got %v", got)
	}
	if got := d.Push(make([]int16, 500)); got == NotEnoughInfo {
		t.Errorf("expected a verdict once buffer is full, got %v", got)
	}
}

func TestSpeechAboveThreshold(t *testing.T) {
	d := NewWithParams(100, 1.0, 50)
	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 200
	}
	if got := d.Push(loud); got != Speech {
		t.Errorf("expected Speech, got %v", got)
	}
}

func TestNonSpeechBelowThreshold(t *testing.T) {
	d := NewWithParams(100, 1.0, 500)
	quiet := make([]int16, 100)
	for i := range quiet {
		quiet[i] = 10
	}
	if got := d.Push(quiet); got != NonSpeech {
		t.Errorf("expected NonSpeech, got %v", got)
	}
}

func TestBufferTrimsToWindow(t *testing.T) {
	d := NewWithParams(10, 1.0, 1<<30) // never Speech; window = 10 samples
	d.Push(make([]int16, 8))
	d.Push(make([]int16, 8))
	if len(d.buf) != 10 {
		t.Errorf("expected buffer trimmed to 10 samples, got %d", len(d.buf))
	}
}

func TestResetClearsBuffer(t *testing.T) {
	d := NewWithParams(10, 1.0, 1)
	d.Push(make([]int16, 10))
	d.Reset()
	if len(d.buf) != 0 {
		t.Errorf("expected empty buffer after reset, got %d", len(d.buf))
	}
}
