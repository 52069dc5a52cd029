package processors

import (
	"context"
	"sync"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/events"
	"github.com/aineurostream/synchro/internal/vad"
)

// VAD wraps internal/vad.Detector as a graph node: a receiver-emitter that
// classifies INT16 audio and publishes a "vad" event per classification,
// passing the frame through unchanged (spec §4.5, §6).
type VAD struct {
	name      string
	threshold int
	publish   func(eventType string, payload events.Context)

	mu       sync.Mutex
	detector *vad.Detector
	pending  []audio.Frame
}

// NewVAD returns a VAD node with threshold as the classification threshold.
func NewVAD(name string, threshold int, publish func(string, events.Context)) *VAD {
	return &VAD{name: name, threshold: threshold, publish: publish}
}

func (v *VAD) Name() string { return v.name }

func (v *VAD) Receive(source string, f audio.Frame) error {
	in16 := f
	if in16.Format != audio.Int16 {
		in16 = in16.ToPCM16LE(nil)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.detector == nil {
		v.detector = vad.NewWithParams(in16.SampleRateHz, 1.0, v.threshold)
	}
	state := v.detector.Push(in16.Int16Samples())
	if v.publish != nil {
		v.publish("vad", events.Context{Action: state.String()})
	}
	v.pending = append(v.pending, f)
	return nil
}

func (v *VAD) Emit(ctx context.Context) (*audio.Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pending) == 0 {
		return nil, nil
	}
	out := v.pending[0]
	v.pending = v.pending[1:]
	return &out, nil
}
