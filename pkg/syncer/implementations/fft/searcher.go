// Package fft computes the same correlation curve as a direct evaluation,
// but obtains the cross products of all offsets at once through a
// zero-padded FFT and the remaining sums through prefix sums.
package fft

import (
	"context"
	"fmt"
	"math"
	"math/bits"

	"github.com/brettbuddin/fourier"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

// constantThreshold is the relative variance below which a segment is
// considered constant.
const constantThreshold = 1e-12

type Searcher struct{}

var _ syncer.Searcher = (*Searcher)(nil)

func NewSearcher() *Searcher {
	return &Searcher{}
}

func (s *Searcher) Search(
	ctx context.Context,
	track string,
	reference []float64,
	candidate []float64,
	grid syncer.Grid,
) (_ret *syncer.CorrelationCurve, _err error) {
	logger.Tracef(ctx, "Search(%s): %d offsets", track, len(grid))
	defer func() { logger.Tracef(ctx, "/Search(%s): %v", track, _err) }()

	if len(grid) == 0 {
		return &syncer.CorrelationCurve{Track: track}, nil
	}
	for _, offset := range grid {
		if syncer.SegmentAt(len(reference), candidate, offset).Length <= 0 {
			return nil, &syncer.InsufficientOverlapError{
				Offset:          offset,
				ReferenceLength: len(reference),
				CandidateLength: len(candidate),
			}
		}
	}

	// the correlation is invariant to moving the reference by a constant,
	// and centering it keeps the cross products small
	var refMean float64
	for _, v := range reference {
		refMean += v
	}
	refMean /= float64(len(reference))
	centered := make([]float64, len(reference))
	for i, v := range reference {
		centered[i] = v - refMean
	}

	cross, err := CrossCorrelate(centered, candidate)
	if err != nil {
		return nil, fmt.Errorf("unable to cross-correlate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refSum, refSumSq := prefixSums(centered)
	candSum, candSumSq := prefixSums(candidate)
	n := len(cross)

	curve := &syncer.CorrelationCurve{
		Track:      track,
		Candidates: make([]syncer.OffsetCandidate, 0, len(grid)),
	}
	for _, offset := range grid {
		seg := syncer.SegmentAt(len(reference), candidate, offset)
		l := float64(seg.Length)
		start := 0
		if offset < 0 {
			start = -offset
		}
		end := start + len(seg.Tail)

		sx, sxx := refSum[seg.Length], refSumSq[seg.Length]
		sy, syy := candSum[end]-candSum[start], candSumSq[end]-candSumSq[start]
		sxy := cross[((offset%n)+n)%n]

		vx := sxx - sx*sx/l
		vy := syy - sy*sy/l
		coef := math.NaN()
		if vx > constantThreshold*sxx && vy > constantThreshold*syy {
			coef = (sxy - sx*sy/l) / math.Sqrt(vx*vy)
			coef = math.Max(-1, math.Min(1, coef))
		}
		curve.Candidates = append(curve.Candidates, syncer.OffsetCandidate{
			Offset:      offset,
			Coefficient: coef,
		})
	}
	return curve, nil
}

// CrossCorrelate returns r where r[m] is the sum of x[j+m]*y[j] over all
// valid j; negative lags m are found at r[len(r)+m].
func CrossCorrelate(x, y []float64) ([]float64, error) {
	size := len(x) + len(y) - 1
	if size < 4 {
		size = 4
	}
	n := 1 << bits.Len(uint(size-1))

	fx := make([]complex128, n)
	fy := make([]complex128, n)
	for i, v := range x {
		fx[i] = complex(v, 0)
	}
	for i, v := range y {
		fy[i] = complex(v, 0)
	}
	if err := fourier.Forward(fx); err != nil {
		return nil, fmt.Errorf("unable to transform the first signal: %w", err)
	}
	if err := fourier.Forward(fy); err != nil {
		return nil, fmt.Errorf("unable to transform the second signal: %w", err)
	}
	for i := range fx {
		fx[i] *= complex(real(fy[i]), -imag(fy[i]))
	}
	if err := fourier.Inverse(fx); err != nil {
		return nil, fmt.Errorf("unable to transform back: %w", err)
	}

	result := make([]float64, n)
	for i, v := range fx {
		result[i] = real(v)
	}
	return result, nil
}

func prefixSums(values []float64) ([]float64, []float64) {
	sum := make([]float64, len(values)+1)
	sumSq := make([]float64, len(values)+1)
	for i, v := range values {
		sum[i+1] = sum[i] + v
		sumSq[i+1] = sumSq[i] + v*v
	}
	return sum, sumSq
}
