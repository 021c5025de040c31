package consensus

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

// peakCurve has a coefficient of 1 at peak and lower values elsewhere.
func peakCurve(track string, grid syncer.Grid, peak int) *syncer.CorrelationCurve {
	curve := &syncer.CorrelationCurve{Track: track}
	for _, offset := range grid {
		coef := 1 / (1 + math.Abs(float64(offset-peak)))
		curve.Candidates = append(curve.Candidates, syncer.OffsetCandidate{Offset: offset, Coefficient: coef})
	}
	return curve
}

func rangeGrid(lo, hi, step int) syncer.Grid {
	var grid syncer.Grid
	for o := lo; o <= hi; o += step {
		grid = append(grid, o)
	}
	return grid
}

func TestBest(t *testing.T) {
	tied := &syncer.CorrelationCurve{
		Track: "tied",
		Candidates: []syncer.OffsetCandidate{
			{Offset: 30, Coefficient: 0.9},
			{Offset: -20, Coefficient: 0.9},
			{Offset: 10, Coefficient: 0.9},
			{Offset: 0, Coefficient: 0.5},
			{Offset: -10, Coefficient: 0.9},
			{Offset: 5, Coefficient: math.NaN()},
		},
	}
	for policy, expected := range map[TieBreakPolicy]int{
		TieBreakEarliestOffset: -20,
		TieBreakFirstInGrid:    30,
		TieBreakClosestToZero:  -10,
	} {
		t.Run(policy.String(), func(t *testing.T) {
			best, err := Best(tied, policy)
			require.NoError(t, err)
			assert.Equal(t, expected, best.Offset)
			assert.Equal(t, 0.9, best.Coefficient)
			assert.Equal(t, -20, best.MinOffset)
			assert.Equal(t, 30, best.MaxOffset)
		})
	}

	t.Run("nan_is_ignored", func(t *testing.T) {
		best, err := Best(&syncer.CorrelationCurve{Candidates: []syncer.OffsetCandidate{
			{Offset: 0, Coefficient: math.NaN()},
			{Offset: 1, Coefficient: -0.5},
		}}, TieBreakEarliestOffset)
		require.NoError(t, err)
		assert.Equal(t, 1, best.Offset)
	})

	t.Run("no_usable", func(t *testing.T) {
		_, err := Best(&syncer.CorrelationCurve{Candidates: []syncer.OffsetCandidate{
			{Offset: 0, Coefficient: math.NaN()},
		}}, TieBreakEarliestOffset)
		assert.ErrorIs(t, err, ErrNoUsableCorrelation)

		_, err = Best(&syncer.CorrelationCurve{}, TieBreakEarliestOffset)
		assert.ErrorIs(t, err, ErrNoUsableCorrelation)
	})
}

func TestTieBreakPolicy(t *testing.T) {
	for p := TieBreakPolicy(0); p < EndOfTieBreakPolicy; p++ {
		parsed, err := ParseTieBreakPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParseTieBreakPolicy("latest")
	assert.Error(t, err)
}

func TestToleranceSamples(t *testing.T) {
	assert.Equal(t, 2205, ToleranceSamples(audio.DefaultSampleRate, DefaultToleranceFraction))
	assert.Equal(t, 2205, NewResolver(audio.DefaultSampleRate, DefaultToleranceFraction).Tolerance)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	r := &Resolver{Tolerance: 10}
	grid := rangeGrid(-100, 100, 1)

	t.Run("single_track", func(t *testing.T) {
		result, err := r.Resolve(ctx, peakCurve("LR", grid, -37))
		require.NoError(t, err)
		assert.Equal(t, -37, result.Offset)
		require.Len(t, result.Tracks, 1)
		assert.Equal(t, 1.0, result.Tracks[0].Coefficient)
	})

	t.Run("agreement_at_exact_tolerance", func(t *testing.T) {
		result, err := r.Resolve(ctx, peakCurve("L", grid, 20), peakCurve("R", grid, 30))
		require.NoError(t, err)
		assert.Equal(t, 25, result.Offset)
	})

	t.Run("disagreement_beyond_tolerance", func(t *testing.T) {
		_, err := r.Resolve(ctx, peakCurve("L", grid, 20), peakCurve("R", grid, 31))
		var disagreement *DisagreementError
		require.True(t, errors.As(err, &disagreement), "%v", err)
		assert.Equal(t, 11, disagreement.Spread)
		assert.Equal(t, 10, disagreement.Tolerance)
		require.Len(t, disagreement.Tracks, 2)
		assert.Equal(t, "L", disagreement.Tracks[0].Track)
		assert.Equal(t, 31, disagreement.Tracks[1].Offset)

		rendered := disagreement.Render(table.StyleLight, 44100)
		// headers and footers are upper-cased by the table styles
		assert.Contains(t, rendered, "COEFFICIENT")
		assert.Contains(t, rendered, "TOLERANCE 10")
		assert.Contains(t, rendered, "31")
		assert.Contains(t, disagreement.Error(), "R=31")
	})

	t.Run("rounded_mean", func(t *testing.T) {
		result, err := r.Resolve(ctx, peakCurve("A", grid, 1), peakCurve("B", grid, 2))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Offset, "1.5 rounds half to even")

		result, err = r.Resolve(ctx, peakCurve("A", grid, 2), peakCurve("B", grid, 3))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Offset, "2.5 rounds half to even")

		result, err = r.Resolve(ctx, peakCurve("A", grid, 0), peakCurve("B", grid, 0), peakCurve("C", grid, 5))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Offset)
	})

	for name, peak := range map[string]int{
		"at_min":   -100,
		"near_min": -90,
		"near_max": 90,
		"at_max":   100,
	} {
		t.Run("range_exhausted_"+name, func(t *testing.T) {
			_, err := r.Resolve(ctx, peakCurve("A", grid, peak))
			var exhausted *SearchRangeExhaustedError
			require.True(t, errors.As(err, &exhausted), "%v", err)
			assert.Equal(t, peak, exhausted.Offset)
			assert.Equal(t, -100, exhausted.MinOffset)
			assert.Equal(t, 100, exhausted.MaxOffset)
		})
	}

	t.Run("range_ok_just_inside", func(t *testing.T) {
		result, err := r.Resolve(ctx, peakCurve("A", grid, -89))
		require.NoError(t, err)
		assert.Equal(t, -89, result.Offset)
	})

	t.Run("one_track_exhausted_blocks_consensus", func(t *testing.T) {
		_, err := r.Resolve(ctx, peakCurve("A", grid, 0), peakCurve("B", grid, 99))
		var exhausted *SearchRangeExhaustedError
		require.True(t, errors.As(err, &exhausted), "%v", err)
		assert.Equal(t, "B", exhausted.Track)
	})

	t.Run("no_curves", func(t *testing.T) {
		_, err := r.Resolve(ctx)
		assert.Error(t, err)
	})
}
