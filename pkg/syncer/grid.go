package syncer

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/audioalign/pkg/audio"
)

const (
	DefaultOffsetStartSeconds = -10.0
	DefaultOffsetEndSeconds   = 10.0
	DefaultOffsetStepSeconds  = 0.1
)

// Grid is the ordered set of offsets to test.
type Grid []int

// GridFromSeconds converts the range [start, end] with the given step
// into sample offsets. The end is included when it lies on the step.
// Offsets that collapse to the same sample are kept once.
func GridFromSeconds(
	startSeconds, endSeconds, stepSeconds float64,
	rate audio.SampleRate,
) (Grid, error) {
	if stepSeconds <= 0 {
		return nil, fmt.Errorf("the step must be positive, got %v", stepSeconds)
	}
	if endSeconds < startSeconds {
		return nil, fmt.Errorf("the range end (%v) is before its start (%v)", endSeconds, startSeconds)
	}
	if rate == 0 {
		return nil, fmt.Errorf("the sample rate is mandatory")
	}

	eps := stepSeconds * 1e-9
	var grid Grid
	seen := map[int]struct{}{}
	for i := 0; ; i++ {
		x := startSeconds + float64(i)*stepSeconds
		if x > endSeconds+eps {
			break
		}
		offset := int(math.Round(float64(rate) * x))
		if _, ok := seen[offset]; ok {
			continue
		}
		seen[offset] = struct{}{}
		grid = append(grid, offset)
	}
	return grid, nil
}

// Range returns the smallest and the largest offset.
func (g Grid) Range() (int, int) {
	if len(g) == 0 {
		return 0, 0
	}
	lo, hi := g[0], g[0]
	for _, offset := range g[1:] {
		lo = min(lo, offset)
		hi = max(hi, offset)
	}
	return lo, hi
}

func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if g[i] != other[i] {
			return false
		}
	}
	return true
}
