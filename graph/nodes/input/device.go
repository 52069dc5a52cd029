package input

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/devicemgr"
	"github.com/aineurostream/synchro/graph"
)

// DeviceNode is the input_channel node: a PortAudio capture stream whose
// callback appends samples to a lock-protected accumulator, swapped out
// whole on each Emit (spec §4.2.2).
type DeviceNode struct {
	name     string
	deviceID int
	channel  int
	log      *slog.Logger

	stream *devicemgr.InputStream

	mu   sync.Mutex
	accu []float32
}

// NewDeviceNode returns an unacquired DeviceNode for the given device
// index; channel selects which input channel to keep when the device
// exposes more than one (1-indexed per spec §6).
func NewDeviceNode(name string, deviceID, channel int, log *slog.Logger) *DeviceNode {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceNode{name: name, deviceID: deviceID, channel: channel, log: log}
}

func (n *DeviceNode) Name() string { return n.name }

// Acquire opens the input stream at the device's default sample rate,
// downmixing each callback's interleaved buffer to mono before appending.
func (n *DeviceNode) Acquire(ctx context.Context) error {
	stream, err := devicemgr.OpenInputStream(n.deviceID, 960, n.onSamples)
	if err != nil {
		return &graph.ResourceError{Node: n.name, Err: err}
	}
	n.stream = stream
	n.log.Debug("capture stream opened", "component", "input.device", "node", n.name, "device_id", n.deviceID, "sample_rate", stream.SampleRate)
	return nil
}

func (n *DeviceNode) onSamples(interleaved []float32) {
	channels := n.stream.Channels
	if channels <= 0 {
		channels = 1
	}
	nFrames := len(interleaved) / channels

	n.mu.Lock()
	defer n.mu.Unlock()
	if channels == 1 {
		n.accu = append(n.accu, interleaved...)
		return
	}
	ch := n.channel - 1
	for i := 0; i < nFrames; i++ {
		if ch >= 0 && ch < channels {
			n.accu = append(n.accu, interleaved[i*channels+ch])
			continue
		}
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		n.accu = append(n.accu, sum/float32(channels))
	}
}

func (n *DeviceNode) Release() error {
	if n.stream == nil {
		return nil
	}
	return n.stream.Close()
}

// Emit atomically swaps the accumulator for an empty one and returns it as
// a mono FLOAT32 Frame, or (nil, nil) if nothing has arrived since the last
// call (spec §4.2.2).
func (n *DeviceNode) Emit(ctx context.Context) (*audio.Frame, error) {
	n.mu.Lock()
	samples := n.accu
	n.accu = nil
	n.mu.Unlock()

	if len(samples) == 0 {
		return nil, nil
	}
	f := audio.FrameFromFloat32(samples, int(n.stream.SampleRate), 1)
	return &f, nil
}
