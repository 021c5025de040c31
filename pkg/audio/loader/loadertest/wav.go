// Package loadertest produces recordings for tests of packages that read them.
package loadertest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes interleaved integer samples as an integer PCM WAV file.
func WriteWAV(
	path string,
	sampleRate int,
	bitDepth int,
	channels int,
	interleaved []int,
) (_err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = err
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           interleaved,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("unable to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}

// ToS16 converts samples in [-1, 1] to signed 16-bit integers.
func ToS16(samples []float64) []int {
	result := make([]int, len(samples))
	for i, v := range samples {
		result[i] = int(math.Round(math.Max(-1, math.Min(1, v)) * 32767))
	}
	return result
}

// WriteWAVData writes a PCM WAV file around data as is, so that the data
// chunk may end in the middle of a frame.
func WriteWAVData(
	path string,
	sampleRate int,
	bitDepth int,
	channels int,
	data []byte,
) error {
	blockAlign := channels * bitDepth / 8
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, struct {
		ChunkSize     uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{
		ChunkSize:     16,
		AudioFormat:   1,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: uint16(bitDepth),
	})
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return nil
}

// S16LE encodes samples as little-endian signed 16-bit integers.
func S16LE(samples ...int) []byte {
	data := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(int16(v)))
	}
	return data
}
