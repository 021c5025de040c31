// Package loader decodes recordings from disk into mono float64 samples.
package loader

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/audio/pcm"
)

// Info describes a recording without decoding it.
type Info struct {
	SampleRate audio.SampleRate
	Channels   audio.Channel
	BitDepth   int

	// Frames is the amount of samples per channel, or -1 if unknown.
	Frames int64
}

func (i *Info) Duration() time.Duration {
	if i.Frames < 0 {
		return 0
	}
	return audio.SamplesToDuration(int(i.Frames), i.SampleRate)
}

// Source yields mono samples in [-1, 1].
type Source interface {
	SampleRate() audio.SampleRate

	// ReadSamples fills dst and returns the amount of samples written,
	// or io.EOF once there is nothing left.
	ReadSamples(dst []float64) (int, error)
}

type Decoder interface {
	Extensions() []string
	Probe(r io.ReadSeeker) (*Info, error)
	NewSource(r io.ReadSeeker) (Source, error)
}

type interleavedSource[T pcm.Number] struct {
	sampleRate audio.SampleRate
	channels   int
	fullScale  float64
	read       func([]T) (int, error)
	work       []T
	pending    []T
}

func (s *interleavedSource[T]) SampleRate() audio.SampleRate {
	return s.sampleRate
}

func (s *interleavedSource[T]) ReadSamples(dst []float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	need := len(dst) * s.channels
	if cap(s.work) < need {
		s.work = make([]T, need)
	}
	work := s.work[:need]

	for {
		p := copy(work, s.pending)
		n, err := s.read(work[p:])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("unable to read samples: %w", err)
		}
		if n == 0 {
			if p > 0 {
				return 0, audio.NewFormatError("", "non-integral sample count: %d trailing samples do not form a whole %d-channel frame", p, s.channels)
			}
			return 0, io.EOF
		}
		total := p + n
		frames := pcm.Downmix(dst, work[:total], s.channels, s.fullScale)
		s.pending = append(s.pending[:0], work[frames*s.channels:total]...)
		if frames > 0 {
			return frames, nil
		}
	}
}
