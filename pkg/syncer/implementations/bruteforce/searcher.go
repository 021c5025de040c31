// Package bruteforce evaluates the Pearson correlation directly at every
// offset of the grid.
package bruteforce

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

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

	curve := &syncer.CorrelationCurve{
		Track:      track,
		Candidates: make([]syncer.OffsetCandidate, 0, len(grid)),
	}
	for idx, offset := range grid {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		coef, ok := syncer.PearsonAt(reference, candidate, offset)
		if !ok {
			return nil, &syncer.InsufficientOverlapError{
				Offset:          offset,
				ReferenceLength: len(reference),
				CandidateLength: len(candidate),
			}
		}
		logger.Tracef(ctx, "%s: [%d/%d] offset %d: %v", track, idx+1, len(grid), offset, coef)
		curve.Candidates = append(curve.Candidates, syncer.OffsetCandidate{
			Offset:      offset,
			Coefficient: coef,
		})
	}
	return curve, nil
}
