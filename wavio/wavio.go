// Package wavio reads and writes WAV files for the file input/output nodes
// (spec §6: 16/24/32-bit integer and 32-bit float PCM, little-endian,
// 1..N channels). Integer PCM goes through github.com/go-audio/wav, the
// library the rest of the retrieved corpus's audio tooling (birdnet-go,
// rayboyd-audio-engine) standardizes on; the 32-bit float variant isn't
// exposed through that library's public IntBuffer-based API, so it is
// read/written directly against the RIFF layout with encoding/binary (see
// DESIGN.md).
package wavio

import (
	"encoding/binary"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/aineurostream/synchro/audio"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ReadFile loads path into a Frame in its native format, sample rate, and
// channel count.
func ReadFile(path string) (audio.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("wavio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return audio.Frame{}, fmt.Errorf("wavio: %s is not a valid WAV file", path)
	}

	if dec.WavAudioFormat == wavFormatFloat {
		f.Seek(0, 0)
		return readFloat32(f, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.Frame{}, fmt.Errorf("wavio: decode %s: %w", path, err)
	}

	format, err := formatForBitDepth(int(dec.BitDepth))
	if err != nil {
		return audio.Frame{}, fmt.Errorf("wavio: %s: %w", path, err)
	}

	payload := packInts(buf.Data, format)
	return audio.Frame{
		Format:       format,
		SampleRateHz: int(dec.SampleRate),
		Channels:     int(dec.NumChans),
		Payload:      payload,
	}, nil
}

// WriteFile writes f to path as a WAV file matching f's format, sample
// rate, and channel count.
func WriteFile(path string, f audio.Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create %s: %w", path, err)
	}
	defer out.Close()

	if f.Format == audio.Float32 {
		return writeFloat32(out, f)
	}

	bitDepth, err := bitDepthForFormat(f.Format)
	if err != nil {
		return fmt.Errorf("wavio: %s: %w", path, err)
	}

	enc := wav.NewEncoder(out, f.SampleRateHz, bitDepth, f.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRateHz},
		Data:           unpackInts(f),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: write %s: %w", path, err)
	}
	return enc.Close()
}

func formatForBitDepth(bits int) (audio.Format, error) {
	switch bits {
	case 8:
		return audio.Int8, nil
	case 16:
		return audio.Int16, nil
	case 24:
		return audio.Int24, nil
	case 32:
		return audio.Int32, nil
	default:
		return audio.Invalid, fmt.Errorf("unsupported integer PCM bit depth %d", bits)
	}
}

func bitDepthForFormat(f audio.Format) (int, error) {
	switch f {
	case audio.Int8:
		return 8, nil
	case audio.Int16:
		return 16, nil
	case audio.Int24:
		return 24, nil
	case audio.Int32:
		return 32, nil
	default:
		return 0, fmt.Errorf("format %s has no integer PCM bit depth", f)
	}
}

// packInts repacks go-audio's per-sample integer Data into little-endian
// bytes at format's native sample size.
func packInts(data []int, format audio.Format) []byte {
	size := format.SampleSizeBytes()
	out := make([]byte, len(data)*size)
	for i, v := range data {
		off := i * size
		switch format {
		case audio.Int8:
			out[off] = byte(int8(v))
		case audio.Int16:
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		case audio.Int24:
			u := uint32(int32(v))
			out[off] = byte(u)
			out[off+1] = byte(u >> 8)
			out[off+2] = byte(u >> 16)
		case audio.Int32:
			binary.LittleEndian.PutUint32(out[off:], uint32(int32(v)))
		}
	}
	return out
}

// unpackInts turns f's raw payload back into go-audio's per-sample integer
// Data slice.
func unpackInts(f audio.Frame) []int {
	size := f.Format.SampleSizeBytes()
	n := len(f.Payload) / size
	out := make([]int, n)
	for i := 0; i < n; i++ {
		off := i * size
		switch f.Format {
		case audio.Int8:
			out[i] = int(int8(f.Payload[off]))
		case audio.Int16:
			out[i] = int(int16(binary.LittleEndian.Uint16(f.Payload[off:])))
		case audio.Int24:
			u := uint32(f.Payload[off]) | uint32(f.Payload[off+1])<<8 | uint32(f.Payload[off+2])<<16
			if u&0x800000 != 0 {
				u |= 0xFF000000
			}
			out[i] = int(int32(u))
		case audio.Int32:
			out[i] = int(int32(binary.LittleEndian.Uint32(f.Payload[off:])))
		}
	}
	return out
}
