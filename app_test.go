package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/internal/config"
	"github.com/aineurostream/synchro/wavio"
)

func TestAppRunFileToFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")

	samples := make([]int16, 1600) // 0.1s @ 16kHz
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	in := audio.FrameFromInt16(samples, 16000, 1)
	if err := wavio.WriteFile(inPath, in); err != nil {
		t.Fatalf("write input wav: %v", err)
	}

	cfgYAML := `
name: test-run
input_interval_secs: 0.01
processor_interval_secs: 0.005
nodes:
  - name: src
    node_type: input_file
    path: ` + inPath + `
    looping: false
    enforce_float32: false
  - name: sink
    node_type: output_file
    path: ` + outPath + `
edges:
  - [src, sink]
`
	cfgPath := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("write graph config: %v", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app := NewApp(log, config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := app.Run(ctx, cfgPath, dir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := wavio.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output wav: %v", err)
	}
	if out.FrameCount() == 0 {
		t.Fatal("expected the output file to contain frames")
	}
}

func TestAppRunRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("nodes: [{name: unknown-node, node_type: bogus}]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app := NewApp(log, config.Default())

	if err := app.Run(context.Background(), cfgPath, dir); err == nil {
		t.Fatal("expected an error for an unknown node_type")
	}
}
