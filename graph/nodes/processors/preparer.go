package processors

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/internal/filter"
	"github.com/aineurostream/synchro/internal/wpe"
)

// Preparer is the WhisperPrep conditioning chain (spec §4.9): on each
// arrival it appends the new samples to a float32 accumulator, runs the
// full chain over the whole accumulator, emits exactly the tail
// corresponding to what just arrived, then retains
// max(keep_context_sec*rate, new_samples) of the processed output as the
// next accumulator. Stages are individually toggled by PreparerParams.
type Preparer struct {
	name   string
	params graph.PreparerParams

	mu           sync.Mutex
	rate         int
	channels     int
	nativeFormat audio.Format
	accum        []float32
	wpeProc      *wpe.Processor
	pending      []audio.Frame
}

// NewPreparer returns a Preparer configured by params.
func NewPreparer(name string, params graph.PreparerParams) *Preparer {
	return &Preparer{name: name, params: params}
}

func (p *Preparer) Name() string { return p.name }

func (p *Preparer) Receive(source string, f audio.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.params.RequireFloat32 && f.Format != audio.Float32 {
		return &graph.ConfigError{Reason: fmt.Sprintf("preparer %q: require_float32 but received %v", p.name, f.Format)}
	}

	if p.accum == nil || f.SampleRateHz != p.rate || f.Channels != p.channels {
		p.rate = f.SampleRateHz
		p.channels = f.Channels
		p.wpeProc = nil
		need := int(p.params.MinBufferSec * float64(p.rate) * float64(maxInt(p.channels, 1)))
		if need < 0 {
			need = 0
		}
		p.accum = make([]float32, need)
	}
	p.nativeFormat = f.Format

	asFloat := f
	if f.Format != audio.Float32 {
		asFloat = f.ToFloat32()
	}
	newSamples := asFloat.Float32Samples()
	nIn := len(newSamples)
	p.accum = append(p.accum, newSamples...)

	yFull := p.condition(p.accum)

	var tail []float64
	if len(yFull) < nIn {
		tail = make([]float64, nIn)
		for i, v := range newSamples {
			tail[i] = float64(v)
		}
	} else {
		tail = yFull[len(yFull)-nIn:]
	}
	out32 := make([]float32, len(tail))
	for i, v := range tail {
		out32[i] = float32(v)
	}

	keep := int(p.params.KeepContextSec * float64(p.rate) * float64(maxInt(p.channels, 1)))
	if keep < nIn {
		keep = nIn
	}
	if keep > len(yFull) {
		keep = len(yFull)
	}
	kept := yFull[len(yFull)-keep:]
	p.accum = make([]float32, len(kept))
	for i, v := range kept {
		p.accum[i] = float32(v)
	}

	frame := audio.FrameFromFloat32(out32, p.rate, maxInt(p.channels, 1))
	p.pending = append(p.pending, frame)
	return nil
}

func (p *Preparer) Emit(ctx context.Context) (*audio.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil, nil
	}
	out := p.pending[0]
	p.pending = p.pending[1:]
	return &out, nil
}

// condition runs the full chain on one accumulated batch: WPE dereverb,
// peak normalization, a tanh soft limiter, zero-phase HPF/LPF, and a final
// NaN/Inf sanitize + hard clip. Each stage is skippable via PreparerParams.
func (p *Preparer) condition(batch []float32) []float64 {
	x := batch
	if p.params.EnableWPE {
		if p.wpeProc == nil {
			p.wpeProc = wpe.New(p.rate)
		}
		x = p.wpeProc.Process(x)
	}

	f64 := make([]float64, len(x))
	for i, v := range x {
		f64[i] = float64(v)
	}

	if p.params.EnableNormalize {
		peakNormalizeFloat64(f64, math.Pow(10, -p.params.HeadroomDB/20))
	}

	if p.params.EnableLimiter {
		softLimit(f64, p.params.TruePeakDBFS)
	}

	if p.params.EnableFilters {
		f64 = p.applyFilters(f64)
	}

	sanitize(f64)
	return f64
}

// applyFilters runs forward-backward HPF then LPF zero-phase over the whole
// accumulator x. No separate overlap buffer is needed: the accumulator
// itself already carries keep_context_sec of prior audio forward from the
// last call (spec §4.9 step 4).
func (p *Preparer) applyFilters(x []float64) []float64 {
	nyquist := float64(p.rate) / 2
	if p.params.HPFHz > 0 {
		hp := filter.NewHighpass(p.params.FilterOrder, p.params.HPFHz, float64(p.rate))
		x = hp.FiltFilt(x)
	}
	if p.params.LPFRatioToNyquist > 0 {
		lpfHz := math.Min(p.params.LPFRatioToNyquist*nyquist, nyquist-200)
		lp := filter.NewLowpass(p.params.FilterOrder, lpfHz, float64(p.rate))
		x = lp.FiltFilt(x)
	}
	return x
}

// softLimit leaves x unchanged if its peak is already at or under ceiling =
// 10^(truePeakDBFS/20); otherwise it scales the whole signal to the unit
// peak, compresses through tanh(2x), and renormalizes to ceiling, trading
// hard-clip harmonics for a smooth knee.
func softLimit(x []float64, truePeakDBFS float64) {
	const eps = 1e-12
	ceiling := math.Pow(10, truePeakDBFS/20)

	var peak float64
	for _, v := range x {
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}
	peak += eps
	if peak <= ceiling {
		return
	}

	var tanhPeak float64
	for i, v := range x {
		y := math.Tanh(2 * (v / peak))
		x[i] = y
		if abs := math.Abs(y); abs > tanhPeak {
			tanhPeak = abs
		}
	}
	gain := ceiling / (tanhPeak + eps)
	for i := range x {
		x[i] *= gain
	}
}

// sanitize replaces NaN/Inf samples with silence and hard-clips to
// [-1, 1], the final safety net before audio leaves the conditioning chain.
func sanitize(x []float64) {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			x[i] = 0
			continue
		}
		if v > 1 {
			x[i] = 1
		} else if v < -1 {
			x[i] = -1
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
