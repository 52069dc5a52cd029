package wavio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/aineurostream/synchro/audio"
)

// readFloat32 parses a WAV file known to carry WAVE_FORMAT_IEEE_FLOAT (tag
// 3) samples directly from the RIFF chunk layout, since go-audio/wav's
// public decoding path only hands back integer-valued buffers.
func readFloat32(f *os.File, path string) (audio.Frame, error) {
	r := bufio.NewReader(f)

	var riffHdr [12]byte
	if _, err := io.ReadFull(r, riffHdr[:]); err != nil {
		return audio.Frame{}, fmt.Errorf("wavio: %s: read RIFF header: %w", path, err)
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		return audio.Frame{}, fmt.Errorf("wavio: %s: not a RIFF/WAVE file", path)
	}

	var sampleRate, channels int
	var bitsPerSample int
	var data []byte

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r, chunkHdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return audio.Frame{}, fmt.Errorf("wavio: %s: read chunk header: %w", path, err)
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return audio.Frame{}, fmt.Errorf("wavio: %s: read fmt chunk: %w", path, err)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			data = make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return audio.Frame{}, fmt.Errorf("wavio: %s: read data chunk: %w", path, err)
			}
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return audio.Frame{}, fmt.Errorf("wavio: %s: skip chunk %q: %w", path, id, err)
			}
		}
		if size%2 == 1 {
			io.CopyN(io.Discard, r, 1)
		}
	}

	if bitsPerSample != 32 {
		return audio.Frame{}, fmt.Errorf("wavio: %s: expected 32-bit float samples, got %d-bit", path, bitsPerSample)
	}

	return audio.Frame{
		Format:       audio.Float32,
		SampleRateHz: sampleRate,
		Channels:     channels,
		Payload:      data,
	}, nil
}

// writeFloat32 writes f as a minimal canonical WAVE_FORMAT_IEEE_FLOAT file.
func writeFloat32(out *os.File, f audio.Frame) error {
	dataSize := uint32(len(f.Payload))
	blockAlign := uint16(f.Channels * 4)
	byteRate := uint32(f.SampleRateHz) * uint32(blockAlign)

	w := bufio.NewWriter(out)
	write := func(b []byte) error { _, err := w.Write(b); return err }
	u16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	u32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

	riffSize := 4 + (8 + 16) + (8 + dataSize)
	if err := write([]byte("RIFF")); err != nil {
		return err
	}
	if err := write(u32(riffSize)); err != nil {
		return err
	}
	if err := write([]byte("WAVE")); err != nil {
		return err
	}

	if err := write([]byte("fmt ")); err != nil {
		return err
	}
	if err := write(u32(16)); err != nil {
		return err
	}
	if err := write(u16(wavFormatFloat)); err != nil {
		return err
	}
	if err := write(u16(uint16(f.Channels))); err != nil {
		return err
	}
	if err := write(u32(uint32(f.SampleRateHz))); err != nil {
		return err
	}
	if err := write(u32(byteRate)); err != nil {
		return err
	}
	if err := write(u16(blockAlign)); err != nil {
		return err
	}
	if err := write(u16(32)); err != nil {
		return err
	}

	if err := write([]byte("data")); err != nil {
		return err
	}
	if err := write(u32(dataSize)); err != nil {
		return err
	}
	if err := write(f.Payload); err != nil {
		return err
	}
	if dataSize%2 == 1 {
		if err := write([]byte{0}); err != nil {
			return err
		}
	}
	return w.Flush()
}
