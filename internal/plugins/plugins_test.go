package plugins

import (
	"errors"
	"testing"

	"github.com/aineurostream/synchro/audio"
)

func TestRunChainsPluginsInOrder(t *testing.T) {
	Register("test-gain-double", func(f audio.Frame, cfg map[string]any) (audio.Frame, error) {
		samples := f.Int16Samples()
		for i := range samples {
			samples[i] *= 2
		}
		return audio.FrameFromInt16(samples, f.SampleRateHz, f.Channels), nil
	})

	f := audio.FrameFromInt16([]int16{1, 2, 3}, 16000, 1)
	chain := []Spec{{Name: "test-gain-double"}, {Name: "test-gain-double"}}

	out, err := Run(f, chain, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.Int16Samples()
	want := []int16{4, 8, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: want %d, got %d", i, want[i], got[i])
		}
	}
}

func TestRunSkipsUnknownPlugin(t *testing.T) {
	f := audio.FrameFromInt16([]int16{5}, 16000, 1)
	out, err := Run(f, []Spec{{Name: "does-not-exist"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Int16Samples()[0] != 5 {
		t.Errorf("expected frame unchanged by missing plugin")
	}
}

func TestRunPropagatesPluginError(t *testing.T) {
	Register("test-always-fails", func(f audio.Frame, cfg map[string]any) (audio.Frame, error) {
		return audio.Frame{}, errors.New("boom")
	})

	_, err := Run(audio.FrameFromInt16([]int16{1}, 16000, 1), []Spec{{Name: "test-always-fails"}}, nil)
	if err == nil {
		t.Fatal("expected error from failing plugin")
	}
}

func TestRegisterPanicsOnDuplicateName(t *testing.T) {
	Register("test-dup-guard", func(f audio.Frame, cfg map[string]any) (audio.Frame, error) { return f, nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("test-dup-guard", func(f audio.Frame, cfg map[string]any) (audio.Frame, error) { return f, nil })
}
