package plugins

import (
	"fmt"
	"log/slog"

	"github.com/aineurostream/synchro/audio"
)

// Spec names one step of a plugin chain and its decoded configuration.
type Spec struct {
	Name   string
	Config map[string]any
}

// Run applies each Spec in chain to f in order, threading the output of one
// step into the next. An unknown plugin name is logged and skipped rather
// than failing the chain; a plugin that returns an error aborts the chain
// and that error is returned wrapped with the step that produced it.
func Run(f audio.Frame, chain []Spec, log *slog.Logger) (audio.Frame, error) {
	if log == nil {
		log = slog.Default()
	}
	out := f
	for step, spec := range chain {
		fn, ok := Lookup(spec.Name)
		if !ok {
			log.Warn("plugin not found, skipping",
				"component", "plugins",
				"plugin", spec.Name,
				"step", step+1)
			continue
		}
		var err error
		out, err = fn(out, spec.Config)
		if err != nil {
			return audio.Frame{}, fmt.Errorf("plugin %q failed at step %d: %w", spec.Name, step+1, err)
		}
	}
	return out, nil
}
