// Package output implements the graph's two output node kinds: writing
// accumulated audio to a WAV file at release, and streaming to a PortAudio
// playback device.
package output

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/devicemgr"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/wavio"
)

// FileNode is the output_file node: a pure receiver that accumulates every
// Frame it's given and writes the whole stream to path on Release.
type FileNode struct {
	name string
	path string
	log  *slog.Logger

	mu   sync.Mutex
	data audio.Frame
	set  bool
}

// NewFileNode returns an unacquired FileNode writing to path ($WORKING_DIR
// substituted) when released.
func NewFileNode(name, path, workingDir string, log *slog.Logger) *FileNode {
	if log == nil {
		log = slog.Default()
	}
	return &FileNode{name: name, path: strings.ReplaceAll(path, "$WORKING_DIR", workingDir), log: log}
}

func (n *FileNode) Name() string { return n.name }

func (n *FileNode) Acquire(ctx context.Context) error { return nil }

// Receive appends f to the accumulated stream; the first Frame received
// fixes the output's (format, rate, channels).
func (n *FileNode) Receive(source string, f audio.Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.set {
		n.data = f.Clone()
		n.set = true
		return nil
	}
	merged, err := n.data.AppendInPlace(f)
	if err != nil {
		return &graph.ProtocolError{Node: n.name, Err: err}
	}
	n.data = merged
	return nil
}

// Release writes the accumulated stream to disk.
func (n *FileNode) Release() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.set {
		return nil
	}
	if err := wavio.WriteFile(n.path, n.data); err != nil {
		return &graph.ResourceError{Node: n.name, Err: err}
	}
	n.log.Debug("wrote output file", "component", "output.file", "node", n.name, "path", n.path, "frames", n.data.FrameCount())
	return nil
}

// DeviceNode is the output_channel node: a pure receiver streaming Frames
// to a PortAudio playback device as they arrive.
type DeviceNode struct {
	name     string
	deviceID int
	channel  int
	log      *slog.Logger

	stream *devicemgr.OutputStream
}

// NewDeviceNode returns an unacquired DeviceNode targeting the given device
// index.
func NewDeviceNode(name string, deviceID, channel int, log *slog.Logger) *DeviceNode {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceNode{name: name, deviceID: deviceID, channel: channel, log: log}
}

func (n *DeviceNode) Name() string { return n.name }

func (n *DeviceNode) Acquire(ctx context.Context) error {
	stream, err := devicemgr.OpenOutputStream(n.deviceID, 960)
	if err != nil {
		return &graph.ResourceError{Node: n.name, Err: err}
	}
	n.stream = stream
	n.log.Debug("playback stream opened", "component", "output.device", "node", n.name, "device_id", n.deviceID)
	return nil
}

func (n *DeviceNode) Release() error {
	if n.stream == nil {
		return nil
	}
	return n.stream.Close()
}

// Receive converts f to FLOAT32 if necessary and writes it to the
// playback stream.
func (n *DeviceNode) Receive(source string, f audio.Frame) error {
	if f.Format != audio.Float32 {
		f = f.ToFloat32()
	}
	n.stream.Write(f.Float32Samples())
	return nil
}
