package graph

import (
	"context"
	"fmt"

	"github.com/aineurostream/synchro/audio"
)

// MinNodeNameLen is the shortest legal node name (spec §3).
const MinNodeNameLen = 3

// Node is the minimal capability every graph participant has: a stable,
// unique name. A concrete node additionally implements any non-empty subset
// of Emitter, Receiver and Contextual — the executor (see manager.go) is
// written once over those capabilities and type-asserts for each.
type Node interface {
	Name() string
}

// Emitter is implemented by nodes that produce Frames: inputs, and any
// receiver-emitter processor. Emit returns (nil, nil) when no data is
// available yet (a transient condition, not an error — spec §7).
type Emitter interface {
	Emit(ctx context.Context) (*audio.Frame, error)
}

// Receiver is implemented by nodes that consume Frames from one or more
// incoming edges. source is the name of the node the frame arrived from,
// letting multi-input receivers (e.g. the Mixer) attribute frames per edge.
type Receiver interface {
	Receive(source string, f audio.Frame) error
}

// Contextual is implemented by nodes with a scoped lifecycle: acquiring and
// releasing external resources such as files, devices or sockets. Acquire
// failures are ResourceErrors and isolate only the failing node (spec §7).
type Contextual interface {
	Acquire(ctx context.Context) error
	Release() error
}

// ValidateNodeName enforces the minimum node name length invariant.
func ValidateNodeName(name string) error {
	if len(name) < MinNodeNameLen {
		return &ConfigError{Reason: fmt.Sprintf("node name %q shorter than %d characters", name, MinNodeNameLen)}
	}
	return nil
}

// Edge is a directed connection between two named nodes. Each edge owns
// exactly one unbounded FIFO queue of Frames, created by the manager at
// execute() time.
type Edge struct {
	Source string
	Target string
}

// ID returns the edge's identity string, "[source → target]".
func (e Edge) ID() string {
	return fmt.Sprintf("[%s → %s]", e.Source, e.Target)
}
