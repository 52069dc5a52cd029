package processors

import (
	"context"
	"sync"
	"time"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
)

// mixerSourceState is MixerInputState from the spec glossary: per source
// name, a buffered Frame and whether that source currently counts as
// streaming.
type mixerSourceState struct {
	buffer    audio.Frame
	streaming bool
}

// Mixer aligns N independent producers into a single output stream at a
// fixed rate (spec §4.8). Source order is the insertion order of each
// source's first non-empty Receive (a tie-break for the summed output when
// multiple sources are streaming at once).
type Mixer struct {
	name string
	step float64 // min_working_step_length_secs

	mu       sync.Mutex
	order    []string
	sources  map[string]*mixerSourceState
	lastTick time.Time
}

// NewMixer returns a Mixer pacing transitions with minWorkingStepSecs.
func NewMixer(name string, minWorkingStepSecs float64) *Mixer {
	return &Mixer{name: name, step: minWorkingStepSecs, sources: make(map[string]*mixerSourceState)}
}

func (m *Mixer) Name() string { return m.name }

func (m *Mixer) Receive(source string, f audio.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(f.Payload) == 0 {
		return nil
	}
	st, ok := m.sources[source]
	if !ok {
		st = &mixerSourceState{}
		m.sources[source] = st
		m.order = append(m.order, source)
	}
	if st.buffer.Payload == nil {
		st.buffer = f.Clone()
		return nil
	}
	merged, err := st.buffer.AppendInPlace(f)
	if err != nil {
		return &graph.ProtocolError{Node: m.name, Err: err}
	}
	st.buffer = merged
	return nil
}

// Emit runs the per-tick alignment algorithm of spec §4.8: pads silence
// into not-yet-streaming sources, flips streaming state on the
// start/stop thresholds, then sums the head of every currently-streaming
// source's buffer.
func (m *Mixer) Emit(ctx context.Context) (*audio.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var elapsed float64
	if !m.lastTick.IsZero() {
		elapsed = now.Sub(m.lastTick).Seconds()
	}
	m.lastTick = now

	if len(m.order) == 0 {
		return nil, nil
	}

	var rate int
	var format audio.Format
	var channels int
	for _, name := range m.order {
		st := m.sources[name]
		if st.buffer.Payload != nil {
			rate = st.buffer.SampleRateHz
			format = st.buffer.Format
			channels = st.buffer.Channels
			break
		}
	}
	if rate == 0 {
		return nil, nil
	}

	start := int(3 * m.step * float64(rate))
	stop := int(1 * m.step * float64(rate))
	batch := int(m.step * float64(rate))

	for _, name := range m.order {
		st := m.sources[name]
		if !st.streaming {
			pad := audio.Silence(format, rate, channels, int(elapsed*float64(rate)))
			if st.buffer.Payload == nil {
				st.buffer = pad
			} else {
				merged, err := st.buffer.AppendInPlace(pad)
				if err == nil {
					st.buffer = merged
				}
			}
		}

		n := st.buffer.FrameCount()
		if !st.streaming && n >= start {
			st.streaming = true
		} else if st.streaming && n < stop {
			st.streaming = false
		}
	}

	var streaming []string
	for _, name := range m.order {
		if m.sources[name].streaming {
			streaming = append(streaming, name)
		}
	}
	if len(streaming) == 0 {
		return nil, nil
	}

	for _, name := range streaming {
		st := m.sources[name]
		if st.buffer.Format != format || st.buffer.SampleRateHz != rate {
			return nil, &audio.IncompatibleFormatError{
				Op:       "mixer",
				Expected: audio.StreamConfig{Format: format, SampleRateHz: rate, Channels: channels},
				Got:      st.buffer.StreamConfig(),
			}
		}
	}

	rows := make([][]float32, len(streaming))
	for i, name := range streaming {
		st := m.sources[name]
		head := st.buffer.Head(batch)
		if head.Format != audio.Float32 {
			head = head.ToFloat32()
		}
		rows[i] = head.Float32Samples()
		st.buffer = st.buffer.Drop(batch)
	}

	outLen := batch * channels
	sum := make([]float32, outLen)
	for _, row := range rows {
		for i := 0; i < outLen && i < len(row); i++ {
			sum[i] += row[i]
		}
	}
	for i := range sum {
		sum[i] /= float32(len(streaming))
	}

	outFloat := audio.FrameFromFloat32(sum, rate, channels)
	if format == audio.Float32 {
		return &outFloat, nil
	}
	out := reencodeFromFloat32(outFloat, format)
	return &out, nil
}
