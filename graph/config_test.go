package graph

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRunConfigAppliesDefaultsAndSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
name: demo
nodes:
  - name: src-file
    node_type: input_file
    path: in.wav
  - name: dst-file
    node_type: output_file
    path: $WORKING_DIR/out.wav
edges:
  - [src-file, dst-file]
`)

	rc, err := LoadRunConfig(path, "/tmp/run-123")
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	if rc.Settings.InputIntervalSecs != DefaultSettings().InputIntervalSecs {
		t.Errorf("expected default input interval, got %v", rc.Settings.InputIntervalSecs)
	}
	if rc.Settings.Name != "demo" {
		t.Errorf("expected settings.name %q, got %q", "demo", rc.Settings.Name)
	}
	got := rc.Graph.Nodes[1].OutputFile.Path
	want := "/tmp/run-123/out.wav"
	if got != want {
		t.Errorf("expected $WORKING_DIR substituted to %q, got %q", want, got)
	}
}

func TestLoadRunConfigRejectsMissingFile(t *testing.T) {
	if _, err := LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadRunConfigRejectsInvalidGraph(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
nodes:
  - name: only-node
    node_type: input_file
    path: in.wav
edges:
  - [only-node, nonexistent]
`)
	if _, err := LoadRunConfig(path, ""); err == nil {
		t.Fatal("expected a ConfigError for an edge referencing an unknown node")
	}
}

func TestLoadRunConfigHonorsExplicitIntervals(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
input_interval_secs: 0.05
processor_interval_secs: 0.02
nodes: []
edges: []
`)
	rc, err := LoadRunConfig(path, "")
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	if rc.Settings.InputIntervalSecs != 0.05 || rc.Settings.ProcessorIntervalSecs != 0.02 {
		t.Errorf("expected explicit intervals preserved, got %+v", rc.Settings)
	}
}
