// Package input implements the graph's two input node kinds — file and
// device — sharing the sanitization mixin described in spec §4.2: convert
// native PCM to float32 mono in [-1, 1] regardless of source format or
// channel count.
package input

import "github.com/aineurostream/synchro/audio"

// sanitize converts a raw Frame in its native format/channel count to
// FLOAT32 mono in [-1, 1], per spec §4.2 steps 1-3.
func sanitize(raw audio.Frame, strategy audio.MonoStrategy, selectChannel int) audio.Frame {
	return raw.ToFloat32().DownmixFloat32(strategy, selectChannel)
}
