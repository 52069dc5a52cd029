package input

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aineurostream/synchro/audio"
	"github.com/aineurostream/synchro/graph"
	"github.com/aineurostream/synchro/wavio"
)

const minChunkMs = 10

// FileNode is the input_file node: loads a whole WAV file to memory at
// acquire, then paces emission to wall-clock time so a file source behaves
// like a live one (spec §4.2.1).
type FileNode struct {
	name   string
	log    *slog.Logger
	params graph.InputFileParams

	data   audio.Frame // pre-downmixed, native bit-width
	cursor int         // byte offset into data.Payload
	pos    int         // current playback byte offset, counting loops

	delayRemaining []byte // zero-filled silence still to emit
	lastEmit       time.Time
	exhausted      bool
}

// NewFileNode returns an unacquired FileNode for path, looping/delay/etc
// controlled by params.
func NewFileNode(name string, params graph.InputFileParams, workingDir string, log *slog.Logger) *FileNode {
	if log == nil {
		log = slog.Default()
	}
	params.Path = strings.ReplaceAll(params.Path, "$WORKING_DIR", workingDir)
	return &FileNode{name: name, log: log, params: params}
}

func (n *FileNode) Name() string { return n.name }

// Acquire loads and pre-downmixes the file to mono in its native bit-width.
func (n *FileNode) Acquire(ctx context.Context) error {
	raw, err := wavio.ReadFile(n.params.Path)
	if err != nil {
		return &graph.ResourceError{Node: n.name, Err: err}
	}

	strategy := audio.MonoMean
	if n.params.MonoStrategy == "select" {
		strategy = audio.MonoSelect
	}
	if raw.Channels > 1 {
		raw = downmixNative(raw, strategy, n.params.SelectChannelIndex)
	}
	if n.params.EnforceFloat32 && raw.Format != audio.Float32 {
		raw = raw.ToFloat32()
	}

	n.data = raw
	if n.params.Start > 0 {
		bps := raw.Format.SampleSizeBytes()
		off := n.params.Start * bps
		if off < len(raw.Payload) {
			n.pos = off
		}
	}
	if n.params.Delay > 0 {
		bps := raw.Format.SampleSizeBytes()
		n.delayRemaining = make([]byte, int(n.params.Delay*float64(estimateRate(raw)))*bps)
	}
	n.lastEmit = time.Now()
	return nil
}

func (n *FileNode) Release() error { return nil }

// Emit computes the number of bytes owed since the last emit from
// wall-clock elapsed time, emits at least minChunkMs worth, drains any
// initial delay silence first, and loops or exhausts per params.Looping
// (spec §4.2.1).
func (n *FileNode) Emit(ctx context.Context) (*audio.Frame, error) {
	now := time.Now()
	elapsed := now.Sub(n.lastEmit).Seconds()
	n.lastEmit = now

	bps := n.data.Format.SampleSizeBytes()
	rate := estimateRate(n.data)
	minBytes := int(float64(rate)*minChunkMs/1000) * bps
	needBytes := int(elapsed*float64(rate)) * bps
	if needBytes < minBytes {
		needBytes = minBytes
	}

	if len(n.delayRemaining) > 0 {
		take := needBytes
		if take > len(n.delayRemaining) {
			take = len(n.delayRemaining)
		}
		chunk := n.delayRemaining[:take]
		n.delayRemaining = n.delayRemaining[take:]
		return &audio.Frame{Format: n.data.Format, SampleRateHz: n.data.SampleRateHz, Channels: n.data.Channels, Payload: chunk}, nil
	}

	if n.exhausted {
		return nil, nil
	}

	total := len(n.data.Payload)
	if n.pos >= total {
		if n.params.Looping {
			n.pos = 0
		} else {
			n.exhausted = true
			n.log.Debug("file source exhausted", "component", "input.file", "node", n.name, "path", n.params.Path)
			return nil, nil
		}
	}

	end := n.pos + needBytes
	if end > total {
		end = total
	}
	chunk := n.data.Payload[n.pos:end]
	n.pos = end
	if n.pos >= total && !n.params.Looping {
		n.exhausted = true
	}

	out := audio.Frame{Format: n.data.Format, SampleRateHz: n.data.SampleRateHz, Channels: n.data.Channels, Payload: chunk}
	return &out, nil
}

func estimateRate(f audio.Frame) int {
	if f.SampleRateHz > 0 {
		return f.SampleRateHz
	}
	return 16000
}

// downmixNative averages (or selects) channels while staying in f's native
// integer format, so the pre-load step keeps byte-aligned native samples
// rather than forcing an early float conversion (spec §4.2.1: "pre-downmixes
// to mono in the native bit-width").
func downmixNative(f audio.Frame, strategy audio.MonoStrategy, selectChannel int) audio.Frame {
	if f.Format == audio.Float32 {
		return f.DownmixFloat32(strategy, selectChannel)
	}

	size := f.Format.SampleSizeBytes()
	nFrames := f.FrameCount()
	out := make([]byte, nFrames*size)

	readSample := func(frameIdx, ch int) int32 {
		off := (frameIdx*f.Channels + ch) * size
		return decodeNativeSample(f.Format, f.Payload[off:off+size])
	}

	for i := 0; i < nFrames; i++ {
		var v int32
		switch strategy {
		case audio.MonoSelect:
			ch := selectChannel
			if ch < 0 || ch >= f.Channels {
				ch = 0
			}
			v = readSample(i, ch)
		default:
			var sum int64
			for ch := 0; ch < f.Channels; ch++ {
				sum += int64(readSample(i, ch))
			}
			v = int32(sum / int64(f.Channels))
		}
		encodeNativeSample(f.Format, out[i*size:(i+1)*size], v)
	}
	return audio.Frame{Format: f.Format, SampleRateHz: f.SampleRateHz, Channels: 1, Payload: out}
}

func decodeNativeSample(format audio.Format, b []byte) int32 {
	switch format {
	case audio.Int8:
		return int32(int8(b[0]))
	case audio.Int16:
		return int32(int16(uint16(b[0]) | uint16(b[1])<<8))
	case audio.Int24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF)
		}
		return v
	case audio.Int32:
		return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	default:
		return 0
	}
}

func encodeNativeSample(format audio.Format, b []byte, v int32) {
	switch format {
	case audio.Int8:
		b[0] = byte(int8(v))
	case audio.Int16:
		u := uint16(int16(v))
		b[0], b[1] = byte(u), byte(u>>8)
	case audio.Int24:
		u := uint32(v)
		b[0], b[1], b[2] = byte(u), byte(u>>8), byte(u>>16)
	case audio.Int32:
		u := uint32(v)
		b[0], b[1], b[2], b[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
	}
}
