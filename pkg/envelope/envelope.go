// Package envelope computes the amplitude envelope of a recording: a
// centered sliding-window RMS over the samples.
package envelope

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/audioalign/pkg/audio"
)

const (
	// DefaultWindowSeconds is the RMS window length used for offset search.
	DefaultWindowSeconds = 0.2

	// ResyncInterval is how many window steps the running sum of squares
	// is updated incrementally before being recomputed from scratch.
	ResyncInterval = 4096
)

// WindowSamples converts a window length in seconds into an odd amount
// of samples, so that the window has a well-defined center.
func WindowSamples(seconds float64, rate audio.SampleRate) int {
	w := int(math.Round(seconds * float64(rate)))
	if w < 1 {
		return 1
	}
	if w%2 == 0 {
		w++
	}
	return w
}

// Extract returns the envelope of samples with the window of the given
// length. The result has the same length as samples; positions where
// the window does not fit entirely are zero.
func Extract(samples []float64, window int) ([]float64, error) {
	s, err := NewStream(window)
	if err != nil {
		return nil, err
	}
	result := make([]float64, 0, len(samples))
	result = s.Push(result, samples)
	result = s.Finish(result)
	return result, nil
}

// FromPCM16 brings signed 16-bit samples into [-1, 1].
func FromPCM16(samples []int16) []float64 {
	result := make([]float64, len(samples))
	for i, v := range samples {
		result[i] = float64(v) / audio.MaxAmplitudeS16
	}
	return result
}

func validateWindow(window int) error {
	if window < 1 {
		return fmt.Errorf("the window must be at least one sample long, got %d", window)
	}
	return nil
}
