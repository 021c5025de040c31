// Package audio contains the sample model shared by the loaders, the
// envelope extractor and the offset searchers.
package audio

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/audioalign/pkg/audio/types"
)

type SampleRate = types.SampleRate
type Channel = types.Channel
type PCMFormat = types.PCMFormat

const (
	PCMFormatU8        = types.PCMFormatU8
	PCMFormatS16LE     = types.PCMFormatS16LE
	PCMFormatS16BE     = types.PCMFormatS16BE
	PCMFormatS24LE     = types.PCMFormatS24LE
	PCMFormatS24BE     = types.PCMFormatS24BE
	PCMFormatS32LE     = types.PCMFormatS32LE
	PCMFormatS32BE     = types.PCMFormatS32BE
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
	PCMFormatFloat32BE = types.PCMFormatFloat32BE
	PCMFormatFloat64LE = types.PCMFormatFloat64LE
	PCMFormatFloat64BE = types.PCMFormatFloat64BE
)

const (
	// DefaultSampleRate is the rate every recording of a session is expected to have.
	DefaultSampleRate = SampleRate(44100)

	// MaxAmplitudeS16 is the divisor used to bring signed 16-bit samples into [-1, 1].
	MaxAmplitudeS16 = 32767
)

// Waveform is a decoded mono recording.
type Waveform struct {
	Track      string
	SampleRate SampleRate
	Samples    []float64
}

func (w *Waveform) Duration() time.Duration {
	if w == nil || w.SampleRate == 0 {
		return 0
	}
	return SamplesToDuration(len(w.Samples), w.SampleRate)
}

func (w *Waveform) String() string {
	return fmt.Sprintf("%s (%d samples @ %dHz)", w.Track, len(w.Samples), w.SampleRate)
}

func SamplesToDuration(samples int, rate SampleRate) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(int64(samples) * int64(time.Second) / int64(rate))
}

// FormatError is returned when a recording has an unsupported layout.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unsupported audio format: %s", e.Reason)
	}
	return fmt.Sprintf("unsupported audio format of '%s': %s", e.Path, e.Reason)
}

func NewFormatError(path string, format string, args ...any) *FormatError {
	return &FormatError{
		Path:   path,
		Reason: fmt.Sprintf(format, args...),
	}
}
