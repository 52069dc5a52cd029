package processors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
)

// Measurer is a pass-through ASCII level meter: it prints a bar-graph of
// the RMS level of each receive window to its sink at refresh_hz, without
// altering the audio it forwards. It is not part of the distilled audio
// pipeline spec; it mirrors the diagnostic level displays the UI layer
// otherwise renders client-side.
type Measurer struct {
	name   string
	params graph.MeasurerParams
	log     *slog.Logger
	sink    io.Writer
	closer  io.Closer
	console *charmlog.Logger // non-nil only for the stdout/stderr sinks

	mu       sync.Mutex
	window   []float32
	lastDraw time.Time
	pending  []audio.Frame
}

// NewMeasurer returns a Measurer writing to the sink named by params.Sink
// ("stdout", "stderr", or "file" with params.SinkPath). The stdout/stderr
// sinks render through charmbracelet/log for a colored, interactive-CLI
// bar instead of a plain fmt.Fprintf line; the file sink stays plain text
// since it's meant to be tailed or parsed, not watched in a terminal.
func NewMeasurer(name string, params graph.MeasurerParams, log *slog.Logger) *Measurer {
	m := &Measurer{name: name, params: params, log: log}
	switch params.Sink {
	case "stderr":
		m.sink = os.Stderr
		m.console = charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: false})
	case "file":
		f, err := os.OpenFile(params.SinkPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			if log != nil {
				log.Warn("measurer: failed to open sink file, falling back to stdout", "node", name, "path", params.SinkPath, "err", err)
			}
			m.sink = os.Stdout
			m.console = charmlog.NewWithOptions(os.Stdout, charmlog.Options{ReportTimestamp: false})
			break
		}
		m.sink = f
		m.closer = f
	default:
		m.sink = os.Stdout
		m.console = charmlog.NewWithOptions(os.Stdout, charmlog.Options{ReportTimestamp: false})
	}
	return m
}

func (m *Measurer) Name() string { return m.name }

// Acquire is a no-op: the sink is opened eagerly in NewMeasurer.
func (m *Measurer) Acquire(ctx context.Context) error { return nil }

func (m *Measurer) Receive(source string, f audio.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	asFloat := f
	if f.Format != audio.Float32 {
		asFloat = f.ToFloat32()
	}
	m.window = append(m.window, asFloat.Float32Samples()...)

	windowSamples := int(m.params.WindowSeconds * float64(f.SampleRateHz) * float64(maxInt(f.Channels, 1)))
	refreshInterval := time.Duration(0)
	if m.params.RefreshHz > 0 {
		refreshInterval = time.Duration(float64(time.Second) / m.params.RefreshHz)
	}

	now := time.Now()
	if (windowSamples <= 0 || len(m.window) >= windowSamples) && (refreshInterval == 0 || now.Sub(m.lastDraw) >= refreshInterval) {
		m.draw(m.window)
		m.window = m.window[:0]
		m.lastDraw = now
	}

	m.pending = append(m.pending, f)
	return nil
}

func (m *Measurer) Emit(ctx context.Context) (*audio.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, nil
	}
	out := m.pending[0]
	m.pending = m.pending[1:]
	return &out, nil
}

// draw renders one frame of the level bar: RMS in dBFS mapped onto
// params.BarHeight character cells. Clipping is flagged with a "!CLIP"
// marker on the plain-text file sink and as a warn-level line on the
// stdout/stderr console sinks.
func (m *Measurer) draw(samples []float32) {
	if len(samples) == 0 || m.sink == nil {
		return
	}

	var sumSq float64
	clipped := false
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
		if m.params.ClipThresholdFloat > 0 && math.Abs(v) >= m.params.ClipThresholdFloat {
			clipped = true
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	dbfs := -120.0
	if rms > 0 {
		dbfs = 20 * math.Log10(rms)
	}

	height := m.params.BarHeight
	if height <= 0 {
		height = 1
	}
	filled := int(math.Round(float64(height) * clampUnit((dbfs+60)/60)))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", height-filled)

	marker := ""
	if clipped {
		marker = " !CLIP"
	}

	if m.console != nil {
		if clipped {
			m.console.Warn(bar, "dbfs", fmt.Sprintf("%6.1f", dbfs))
			return
		}
		m.console.Info(bar, "dbfs", fmt.Sprintf("%6.1f", dbfs))
		return
	}
	fmt.Fprintf(m.sink, "[%s] %6.1f dBFS%s\n", bar, dbfs, marker)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Release closes the sink file if this Measurer opened one.
func (m *Measurer) Release() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}
