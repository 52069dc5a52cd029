// Package filter implements zero-phase Butterworth filtering used by the
// WhisperPrep conditioning chain.
package filter

import "math"

// biquad is a single second-order section, run in Direct Form II transposed.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// run applies s to x and returns the filtered signal, using Direct Form II
// transposed state so the filter can be reused across calls without a
// separate state struct.
func (s *biquad) run(x []float64) []float64 {
	y := make([]float64, len(x))
	var z1, z2 float64
	for i, in := range x {
		out := s.b0*in + z1
		z1 = s.b1*in - s.a1*out + z2
		z2 = s.b2*in - s.a2*out
		y[i] = out
	}
	return y
}

// Cascade is an even-order Butterworth filter built from order/2 biquad
// sections, each tuned to one conjugate pole pair of the analog prototype
// (the standard Butterworth pole-angle construction, not a repeated
// single-section approximation).
type Cascade struct {
	sections []biquad
}

// sectionQs returns the Q factor of each of the order/2 second-order
// sections of an order-N Butterworth filter, derived from the poles of the
// analog prototype: Q_k = 1 / (2*cos(theta_k)), theta_k = (2k-1)*pi/(2*order).
func sectionQs(order int) []float64 {
	n := order / 2
	qs := make([]float64, n)
	for k := 1; k <= n; k++ {
		theta := float64(2*k-1) * math.Pi / float64(2*order)
		qs[k-1] = 1 / (2 * math.Cos(theta))
	}
	return qs
}

// NewLowpass builds an order-th order (odd orders round up to even) Butterworth lowpass
// cascade for cutoffHz at sampleRateHz, using the RBJ cookbook biquad form
// per section with Butterworth-derived Q.
func NewLowpass(order int, cutoffHz, sampleRateHz float64) *Cascade {
	return newCascade(order, cutoffHz, sampleRateHz, lowpassSection)
}

// NewHighpass builds an order-th order (odd orders round up to even) Butterworth highpass
// cascade for cutoffHz at sampleRateHz.
func NewHighpass(order int, cutoffHz, sampleRateHz float64) *Cascade {
	return newCascade(order, cutoffHz, sampleRateHz, highpassSection)
}

func newCascade(order int, cutoffHz, sampleRateHz float64, mk func(cutoffHz, sampleRateHz, q float64) biquad) *Cascade {
	if order < 2 {
		order = 2
	}
	if order%2 != 0 {
		order++
	}
	qs := sectionQs(order)
	sections := make([]biquad, len(qs))
	for i, q := range qs {
		sections[i] = mk(cutoffHz, sampleRateHz, q)
	}
	return &Cascade{sections: sections}
}

func lowpassSection(cutoffHz, sampleRateHz, q float64) biquad {
	w0 := 2 * math.Pi * cutoffHz / sampleRateHz
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)

	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func highpassSection(cutoffHz, sampleRateHz, q float64) biquad {
	w0 := 2 * math.Pi * cutoffHz / sampleRateHz
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// Apply runs the cascade forward across x once.
func (c *Cascade) Apply(x []float64) []float64 {
	y := x
	for i := range c.sections {
		y = c.sections[i].run(y)
	}
	return y
}

// FiltFilt applies the cascade forward, then reversed, then forward again on
// the reversed result and reverses back, cancelling the net phase shift
// (zero-phase filtering). Edge transients are not mirror-padded; short
// buffers will show some settling distortion near the edges.
func (c *Cascade) FiltFilt(x []float64) []float64 {
	fwd := c.Apply(x)
	reverse(fwd)
	back := c.Apply(fwd)
	reverse(back)
	return back
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
