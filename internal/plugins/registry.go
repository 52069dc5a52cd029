// Package plugins is a small named-function registry for optional,
// third-party audio transforms that Run applies as a chain of named steps,
// mirroring the registry/runner split the reference pipeline's plugin system
// used. No graph node type or GraphConfig field refers to the registry.
package plugins

import (
	"fmt"

	"github.com/aineurostream/synchro/audio"
)

// Func transforms a Frame given a plugin-specific config map (already
// decoded from YAML) and returns the transformed Frame.
type Func func(f audio.Frame, cfg map[string]any) (audio.Frame, error)

var registry = make(map[string]Func)

// Register adds fn to the registry under name. It panics if name is
// already registered, matching the reference registry's fail-fast
// double-registration guard.
func Register(name string, fn Func) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("plugins: %q is already registered", name))
	}
	registry[name] = fn
}

// Lookup returns the Func registered under name, and whether it exists.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}
