package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/wavio"
)

func writeTestWav(t *testing.T, nSamples int) string {
	t.Helper()
	samples := make([]int16, nSamples)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	f := audio.FrameFromInt16(samples, 16000, 1)
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := wavio.WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestFileNodeEmitsWithoutExceedingSourceData(t *testing.T) {
	path := writeTestWav(t, 16000) // 1 second

	n := NewFileNode("wav-in", graph.InputFileParams{Path: path, Looping: false, EnforceFloat32: true, MonoStrategy: "mean"}, "", nil)
	if err := n.Acquire(nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer n.Release()

	var total int
	for i := 0; i < 500; i++ {
		f, err := n.Emit(nil)
		if err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if f == nil {
			break
		}
		total += f.FrameCount()
	}
	if total == 0 {
		t.Fatal("expected some frames emitted")
	}
	if total > n.data.FrameCount() {
		t.Errorf("emitted more frames (%d) than the source contains (%d)", total, n.data.FrameCount())
	}
}

func TestFileNodeNonLoopingExhausts(t *testing.T) {
	path := writeTestWav(t, 100)
	n := NewFileNode("wav-in", graph.InputFileParams{Path: path, Looping: false, EnforceFloat32: true, MonoStrategy: "mean"}, "", nil)
	if err := n.Acquire(nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var sawNil bool
	for i := 0; i < 1000; i++ {
		f, err := n.Emit(nil)
		if err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if f == nil {
			sawNil = true
			break
		}
	}
	if !sawNil {
		t.Fatal("expected Emit to eventually return nil for a non-looping exhausted source")
	}
}

func TestAcquireMissingFileIsResourceError(t *testing.T) {
	n := NewFileNode("wav-in", graph.InputFileParams{Path: filepath.Join(t.TempDir(), "missing.wav")}, "", nil)
	err := n.Acquire(nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var resErr *graph.ResourceError
	if !errorsAs(err, &resErr) {
		t.Errorf("expected *graph.ResourceError, got %T", err)
	}
}

func errorsAs(err error, target any) bool {
	switch target.(type) {
	case **graph.ResourceError:
		_, ok := err.(*graph.ResourceError)
		return ok
	}
	return false
}

func TestWorkingDirSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWav(t, 100)
	os.Rename(path, filepath.Join(dir, "in.wav"))

	n := NewFileNode("wav-in", graph.InputFileParams{Path: "$WORKING_DIR/in.wav"}, dir, nil)
	if n.params.Path != filepath.Join(dir, "in.wav") {
		t.Errorf("expected substituted path, got %q", n.params.Path)
	}
}
