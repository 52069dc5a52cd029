// Package devicemgr wraps PortAudio device enumeration and stream lifecycle
// for the graph's device input/output nodes (spec §4.2.2, §6 input_channel
// / output_channel), following the same open/stream/close shape the
// original client's audio engine used for its capture and playback loops.
package devicemgr

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Device describes one enumerated PortAudio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// ListInputDevices returns every device exposing at least one input
// channel.
func ListInputDevices(log *slog.Logger) []Device {
	return listDevices(log, func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
}

// ListOutputDevices returns every device exposing at least one output
// channel.
func ListOutputDevices(log *slog.Logger) []Device {
	return listDevices(log, func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
}

func listDevices(log *slog.Logger, match func(*portaudio.DeviceInfo) bool) []Device {
	if log == nil {
		log = slog.Default()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		log.Error("list devices", "component", "devicemgr", "err", err)
		return nil
	}
	var out []Device
	for i, d := range devices {
		if match(d) {
			out = append(out, Device{
				ID:                i,
				Name:              d.Name,
				MaxInputChannels:  d.MaxInputChannels,
				MaxOutputChannels: d.MaxOutputChannels,
				DefaultSampleRate: d.DefaultSampleRate,
			})
		}
	}
	return out
}

// deviceInfo resolves the PortAudio DeviceInfo for the given index, used to
// read its default sample rate and channel counts before opening a stream.
func deviceInfo(deviceID int) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("devicemgr: enumerate devices: %w", err)
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("devicemgr: device index %d out of range (%d devices)", deviceID, len(devices))
	}
	return devices[deviceID], nil
}

// InputStream is an open capture stream delivering interleaved float32
// samples to onSamples on PortAudio's own callback thread. Callers must
// take their own lock around any state onSamples mutates (spec §5: "Device
// I/O callbacks run on host-audio threads and append to node-local
// lock-protected buffers").
type InputStream struct {
	stream     *portaudio.Stream
	SampleRate float64
	Channels   int
}

// OpenInputStream opens deviceID for capture at its default sample rate,
// framesPerBuffer frames per callback, invoking onSamples with each
// interleaved buffer as it arrives.
func OpenInputStream(deviceID, framesPerBuffer int, onSamples func([]float32)) (*InputStream, error) {
	info, err := deviceInfo(deviceID)
	if err != nil {
		return nil, err
	}
	channels := info.MaxInputChannels
	if channels < 1 {
		channels = 1
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      info.DefaultSampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	buf := make([]float32, framesPerBuffer*channels)
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		copy(buf, in)
		onSamples(buf)
	})
	if err != nil {
		return nil, fmt.Errorf("devicemgr: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("devicemgr: start input stream: %w", err)
	}
	return &InputStream{stream: stream, SampleRate: info.DefaultSampleRate, Channels: channels}, nil
}

// Close stops and releases the stream.
func (s *InputStream) Close() error {
	if s == nil || s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}

// OutputStream is an open playback stream; Write stores samples for the next
// PortAudio callback without blocking.
type OutputStream struct {
	stream     *portaudio.Stream
	SampleRate float64
	Channels   int
	buf        []float32
}

// OpenOutputStream opens deviceID for playback at its default sample rate,
// framesPerBuffer frames per Write call.
func OpenOutputStream(deviceID, framesPerBuffer int) (*OutputStream, error) {
	info, err := deviceInfo(deviceID)
	if err != nil {
		return nil, err
	}
	channels := info.MaxOutputChannels
	if channels < 1 {
		channels = 1
	}

	out := &OutputStream{SampleRate: info.DefaultSampleRate, Channels: channels, buf: make([]float32, framesPerBuffer*channels)}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: channels,
			Latency:  info.DefaultLowOutputLatency,
		},
		SampleRate:      info.DefaultSampleRate,
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, func(o []float32) {
		copy(o, out.buf)
	})
	if err != nil {
		return nil, fmt.Errorf("devicemgr: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("devicemgr: start output stream: %w", err)
	}
	out.stream = stream
	return out, nil
}

// Write copies samples into the stream's playback buffer for the next
// callback invocation; samples shorter than the buffer are zero-padded.
func (s *OutputStream) Write(samples []float32) {
	n := copy(s.buf, samples)
	for i := n; i < len(s.buf); i++ {
		s.buf[i] = 0
	}
}

// Close stops and releases the stream.
func (s *OutputStream) Close() error {
	if s == nil || s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}
