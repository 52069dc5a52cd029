package processors

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
)

func TestMeasurerPassesFramesThroughUnchanged(t *testing.T) {
	m := NewMeasurer("meter", graph.MeasurerParams{RefreshHz: 1000, WindowSeconds: 0, BarHeight: 10, Sink: "file", SinkPath: filepath.Join(t.TempDir(), "meter.log")}, nil)
	f := sineFrame(200, 16000, 1600)
	if err := m.Receive("src", f); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	out, err := m.Emit(context.Background())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if out == nil {
		t.Fatalf("expected a passthrough frame")
	}
	if out.SampleRateHz != f.SampleRateHz || out.Channels != f.Channels {
		t.Fatalf("passthrough frame metadata changed: got %+v", out)
	}
}

func TestMeasurerWritesBarToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.log")
	m := NewMeasurer("meter", graph.MeasurerParams{RefreshHz: 1000, WindowSeconds: 0, BarHeight: 10, Sink: "file", SinkPath: path}, nil)
	if err := m.Receive("src", sineFrame(200, 16000, 1600)); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := m.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sink file: %v", err)
	}
	if !bytes.Contains(data, []byte("dBFS")) {
		t.Fatalf("expected sink output to contain a dBFS readout, got %q", string(data))
	}
}

func TestMeasurerFlagsClipping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.log")
	m := NewMeasurer("meter", graph.MeasurerParams{RefreshHz: 1000, WindowSeconds: 0, BarHeight: 10, ClipThresholdFloat: 0.9, Sink: "file", SinkPath: path}, nil)

	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(0.99 * math.Sin(float64(i)))
	}
	clipFrame := audio.FrameFromFloat32(samples, 16000, 1)
	if err := m.Receive("src", clipFrame); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	m.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sink file: %v", err)
	}
	if !strings.Contains(string(data), "CLIP") {
		t.Fatalf("expected clip marker in output, got %q", string(data))
	}
}
