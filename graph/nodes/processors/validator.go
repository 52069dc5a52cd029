// Package processors implements the graph's stateful and stateless
// conditioning nodes: format validator, resampler, VAD, normalizer,
// denoiser, mixer, and the WhisperPrep conditioning chain (spec §4.3-§4.9).
package processors

import (
	"context"
	"sync"

	"github.com/aineurostream/synchro/audio"
)

// Validator is a pass-through processor that reinterprets incoming bytes
// under a declared format and re-emits them in a configured target format,
// without resampling (spec §4.3).
type Validator struct {
	name            string
	enforceMono     bool
	enforceFormat   audio.Format
	passthroughRate bool

	mu      sync.Mutex
	pending []audio.Frame
}

// NewValidator returns a Validator targeting targetFormat.
func NewValidator(name string, enforceMono bool, targetFormat audio.Format, passthroughRate bool) *Validator {
	return &Validator{name: name, enforceMono: enforceMono, enforceFormat: targetFormat, passthroughRate: passthroughRate}
}

func (v *Validator) Name() string { return v.name }

func (v *Validator) Receive(source string, f audio.Frame) error {
	out := f
	if v.enforceMono && out.Channels > 1 {
		out = out.ToFloat32().DownmixFloat32(audio.MonoMean, 0)
	}
	if v.enforceFormat != audio.Invalid && out.Format != v.enforceFormat {
		if out.Format != audio.Float32 {
			out = out.ToFloat32()
		}
		if v.enforceFormat != audio.Float32 {
			out = reencodeFromFloat32(out, v.enforceFormat)
		}
	}
	v.mu.Lock()
	v.pending = append(v.pending, out)
	v.mu.Unlock()
	return nil
}

func (v *Validator) Emit(ctx context.Context) (*audio.Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pending) == 0 {
		return nil, nil
	}
	out := v.pending[0]
	v.pending = v.pending[1:]
	return &out, nil
}
