package graph

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aineurostream/synchro/audio"
)

// fakeSource is a minimal Emitter that emits one Frame per call until
// exhausted, then returns (nil, nil).
type fakeSource struct {
	name    string
	frames  []audio.Frame
	emitted int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Emit(ctx context.Context) (*audio.Frame, error) {
	if f.emitted >= len(f.frames) {
		return nil, nil
	}
	out := f.frames[f.emitted]
	f.emitted++
	return &out, nil
}

// fakeSink is a minimal Receiver that records every Frame it's given.
type fakeSink struct {
	name string

	mu   sync.Mutex
	got  []audio.Frame
	acqd bool
	rel  bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Acquire(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acqd = true
	return nil
}

func (f *fakeSink) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rel = true
	return nil
}

func (f *fakeSink) Receive(source string, frame audio.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, frame)
	return nil
}

func (f *fakeSink) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestManagerDeliversEmittedFramesToReceiver(t *testing.T) {
	src := &fakeSource{name: "src", frames: []audio.Frame{
		audio.FrameFromInt16([]int16{1, 2, 3}, 16000, 1),
		audio.FrameFromInt16([]int16{4, 5, 6}, 16000, 1),
	}}
	sink := &fakeSink{name: "sink"}

	nodes := map[string]Node{"src": src, "sink": sink}
	edges := []Edge{{Source: "src", Target: "sink"}}
	settings := Settings{InputIntervalSecs: 0.01, ProcessorIntervalSecs: 0.005}

	m := NewManager(nodes, edges, settings, nil, nil)
	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.received() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	m.Stop()

	if got := sink.received(); got != 2 {
		t.Fatalf("expected sink to receive 2 frames, got %d", got)
	}
	if !sink.acqd || !sink.rel {
		t.Fatalf("expected sink to be acquired and released, got acquired=%v released=%v", sink.acqd, sink.rel)
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	src := &fakeSource{name: "src"}
	nodes := map[string]Node{"src": src}
	m := NewManager(nodes, nil, DefaultSettings(), nil, nil)
	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m.Stop()
	m.Stop() // must not block or panic
}

func TestManagerIsolatesFailedAcquire(t *testing.T) {
	good := &fakeSink{name: "good"}
	bad := &failingAcquireNode{name: "bad"}
	nodes := map[string]Node{"good": good, "bad": bad}

	m := NewManager(nodes, nil, Settings{InputIntervalSecs: 0.01, ProcessorIntervalSecs: 0.005}, nil, nil)
	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if !good.acqd {
		t.Fatal("expected the healthy node to still be acquired despite the other node's failure")
	}
}

type failingAcquireNode struct{ name string }

func (n *failingAcquireNode) Name() string                     { return n.name }
func (n *failingAcquireNode) Acquire(ctx context.Context) error { return errAcquire }
func (n *failingAcquireNode) Release() error                   { return nil }

var errAcquire = &ResourceError{Node: "bad", Err: context.DeadlineExceeded}
