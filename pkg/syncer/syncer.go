// Package syncer defines how a candidate recording is slid against a
// fixed reference recording and how well they match at every slide.
//
// An offset is an amount of samples. A negative offset drops that many
// samples from the front of the candidate; a non-negative offset prepends
// that many zeros to it. Either way the reference is never moved, and
// both signals are then truncated to their common length.
package syncer

import (
	"context"
	"fmt"
)

// OffsetCandidate is a single point of a CorrelationCurve. Coefficient
// is NaN when either of the compared segments is constant.
type OffsetCandidate struct {
	Offset      int
	Coefficient float64
}

// CorrelationCurve is the Pearson coefficient of one track against the
// reference at every offset of a Grid, in the order of the grid.
type CorrelationCurve struct {
	Track      string
	Candidates []OffsetCandidate
}

func (c *CorrelationCurve) Offsets() Grid {
	grid := make(Grid, len(c.Candidates))
	for i, candidate := range c.Candidates {
		grid[i] = candidate.Offset
	}
	return grid
}

// Range returns the smallest and the largest tested offset.
func (c *CorrelationCurve) Range() (int, int) {
	return c.Offsets().Range()
}

type ShiftResult struct {
	Shift      float64 // Offset in samples, under the package's sign convention
	Confidence float64 // Confidence score (0..1)
}

type Searcher interface {
	// Search evaluates the correlation of candidate against reference at
	// every offset of grid.
	Search(
		ctx context.Context,
		track string,
		reference []float64,
		candidate []float64,
		grid Grid,
	) (*CorrelationCurve, error)
}

// InsufficientOverlapError means that at some offset the shifted
// candidate and the reference have no samples in common.
type InsufficientOverlapError struct {
	Offset          int
	ReferenceLength int
	CandidateLength int
}

func (e *InsufficientOverlapError) Error() string {
	return fmt.Sprintf(
		"no overlap at offset %d between the reference (%d samples) and the candidate (%d samples)",
		e.Offset, e.ReferenceLength, e.CandidateLength,
	)
}
