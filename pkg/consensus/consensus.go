// Package consensus picks the best offset of every track and reconciles
// them into a single offset.
package consensus

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

const (
	// DefaultToleranceFraction is the tolerance as a fraction of the
	// sample rate, i.e. 50ms.
	DefaultToleranceFraction = 0.05
)

// TrackOffset is the best offset of a single track.
type TrackOffset struct {
	Track       string
	Offset      int
	Coefficient float64

	MinOffset int
	MaxOffset int
}

type Result struct {
	Offset int
	Tracks []TrackOffset
}

// Best returns the offset with the maximal coefficient. Undefined
// coefficients are ignored.
func Best(curve *syncer.CorrelationCurve, policy TieBreakPolicy) (*TrackOffset, error) {
	var (
		found bool
		best  syncer.OffsetCandidate
	)
	for _, c := range curve.Candidates {
		if math.IsNaN(c.Coefficient) {
			continue
		}
		switch {
		case !found, c.Coefficient > best.Coefficient:
		case c.Coefficient == best.Coefficient && policy.prefer(c.Offset, best.Offset):
		default:
			continue
		}
		best = c
		found = true
	}
	if !found {
		return nil, fmt.Errorf("track %s (%d offsets): %w", curve.Track, len(curve.Candidates), ErrNoUsableCorrelation)
	}

	lo, hi := curve.Range()
	return &TrackOffset{
		Track:       curve.Track,
		Offset:      best.Offset,
		Coefficient: best.Coefficient,
		MinOffset:   lo,
		MaxOffset:   hi,
	}, nil
}

type Resolver struct {
	// Tolerance is in samples.
	Tolerance int
	TieBreak  TieBreakPolicy
}

func NewResolver(sampleRate audio.SampleRate, toleranceFraction float64) *Resolver {
	return &Resolver{
		Tolerance: ToleranceSamples(sampleRate, toleranceFraction),
		TieBreak:  TieBreakEarliestOffset,
	}
}

func ToleranceSamples(sampleRate audio.SampleRate, fraction float64) int {
	return int(math.Round(fraction * float64(sampleRate)))
}

// CheckRange fails if the offset is within the tolerance of either edge
// of the tested range.
func (r *Resolver) CheckRange(t *TrackOffset) error {
	if abs(t.Offset-t.MinOffset) <= r.Tolerance || abs(t.Offset-t.MaxOffset) <= r.Tolerance {
		return &SearchRangeExhaustedError{
			TrackOffset: *t,
			Tolerance:   r.Tolerance,
		}
	}
	return nil
}

// Resolve selects and validates the best offset of every curve and
// returns their consensus.
func (r *Resolver) Resolve(
	ctx context.Context,
	curves ...*syncer.CorrelationCurve,
) (_ret *Result, _err error) {
	logger.Tracef(ctx, "Resolve: %d curves", len(curves))
	defer func() { logger.Tracef(ctx, "/Resolve: %v %v", _ret, _err) }()

	if len(curves) == 0 {
		return nil, fmt.Errorf("no curves to resolve")
	}

	var (
		mErr   *multierror.Error
		tracks []TrackOffset
	)
	for _, curve := range curves {
		best, err := Best(curve, r.TieBreak)
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		logger.Debugf(ctx, "track %s: best offset %d (coefficient %f)", best.Track, best.Offset, best.Coefficient)
		if err := r.CheckRange(best); err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		tracks = append(tracks, *best)
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return nil, err
	}

	lo, hi := tracks[0].Offset, tracks[0].Offset
	var sum float64
	for _, t := range tracks {
		lo = min(lo, t.Offset)
		hi = max(hi, t.Offset)
		sum += float64(t.Offset)
	}
	if spread := hi - lo; spread > r.Tolerance {
		return nil, &DisagreementError{
			Tracks:    tracks,
			Spread:    spread,
			Tolerance: r.Tolerance,
		}
	}

	return &Result{
		Offset: int(math.RoundToEven(sum / float64(len(tracks)))),
		Tracks: tracks,
	}, nil
}
