package syncer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audioalign/pkg/audio"
)

func TestGridFromSeconds(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		grid, err := GridFromSeconds(DefaultOffsetStartSeconds, DefaultOffsetEndSeconds, DefaultOffsetStepSeconds, audio.DefaultSampleRate)
		require.NoError(t, err)
		require.Len(t, grid, 201)
		assert.Equal(t, -441000, grid[0])
		assert.Equal(t, -436590, grid[1])
		assert.Equal(t, 0, grid[100])
		assert.Equal(t, 441000, grid[200])
		lo, hi := grid.Range()
		assert.Equal(t, -441000, lo)
		assert.Equal(t, 441000, hi)
	})

	t.Run("dedup", func(t *testing.T) {
		grid, err := GridFromSeconds(0, 0.003, 0.0004, 1000)
		require.NoError(t, err)
		assert.Equal(t, Grid{0, 1, 2, 3}, grid)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := GridFromSeconds(0, 1, 0, 1000)
		assert.Error(t, err)
		_, err = GridFromSeconds(1, 0, 0.1, 1000)
		assert.Error(t, err)
		_, err = GridFromSeconds(0, 1, 0.1, 0)
		assert.Error(t, err)
	})

	assert.True(t, Grid{1, 2}.Equal(Grid{1, 2}))
	assert.False(t, Grid{1, 2}.Equal(Grid{2, 1}))
	assert.False(t, Grid{1}.Equal(Grid{1, 2}))
}

func TestShift(t *testing.T) {
	candidate := []float64{1, 2, 3}
	assert.Equal(t, []float64{0, 0, 1, 2, 3}, Shift(candidate, 2))
	assert.Equal(t, []float64{1, 2, 3}, Shift(candidate, 0))
	assert.Equal(t, []float64{3}, Shift(candidate, -2))
	assert.Empty(t, Shift(candidate, -3))
	assert.Empty(t, Shift(candidate, -10))

	ref, shifted := Overlap([]float64{9, 9, 9, 9}, candidate, 2)
	assert.Equal(t, []float64{9, 9, 9, 9}, ref)
	assert.Equal(t, []float64{0, 0, 1, 2}, shifted)

	ref, shifted = Overlap([]float64{9, 9, 9, 9}, candidate, -1)
	assert.Equal(t, []float64{9, 9}, ref)
	assert.Equal(t, []float64{2, 3}, shifted)
}

func TestSegmentAt(t *testing.T) {
	candidate := []float64{1, 2, 3, 4, 5}
	for _, tc := range []struct {
		refLen, offset int
	}{
		{3, 0}, {3, 2}, {3, 3}, {3, 7}, {10, 2}, {10, -2}, {2, -2}, {10, -5}, {10, -9}, {0, 1},
	} {
		seg := SegmentAt(tc.refLen, candidate, tc.offset)
		_, shifted := Overlap(make([]float64, tc.refLen), candidate, tc.offset)
		require.Equal(t, len(shifted), seg.Length, "%#+v", tc)
		materialized := append(make([]float64, seg.Lead), seg.Tail...)
		assert.Equal(t, shifted, materialized, "%#+v", tc)
	}
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, Pearson(x, x), 1e-12)
	assert.InDelta(t, -1.0, Pearson(x, []float64{5, 4, 3, 2, 1}), 1e-12)
	assert.InDelta(t, 1.0, Pearson(x, []float64{12, 14, 16, 18, 20}), 1e-12)
	assert.True(t, math.IsNaN(Pearson(x, []float64{3, 3, 3, 3, 3})))
	assert.True(t, math.IsNaN(Pearson([]float64{0.1, 0.1, 0.1}, []float64{1, 2, 3})))
	assert.True(t, math.IsNaN(Pearson(x, x[:2])))
	assert.True(t, math.IsNaN(Pearson(nil, nil)))

	t.Run("lead_zeros", func(t *testing.T) {
		reference := []float64{0, 0, 1, 5, 2, 8}
		candidate := []float64{1, 5, 2, 8}
		coef, ok := PearsonAt(reference, candidate, 2)
		require.True(t, ok)
		assert.InDelta(t, 1.0, coef, 1e-12)

		ref, shifted := Overlap(reference, candidate, 1)
		coef, ok = PearsonAt(reference, candidate, 1)
		require.True(t, ok)
		assert.InDelta(t, Pearson(ref, shifted), coef, 1e-12)

		// constant non-zero tail after zeros is not constant
		coef, ok = PearsonAt([]float64{1, 2, 3, 4}, []float64{7, 7}, 2)
		require.True(t, ok)
		assert.False(t, math.IsNaN(coef))

		// only zeros
		coef, ok = PearsonAt([]float64{1, 2, 3, 4}, []float64{0, 0}, 1)
		require.True(t, ok)
		assert.True(t, math.IsNaN(coef))
	})

	t.Run("no_overlap", func(t *testing.T) {
		_, ok := PearsonAt([]float64{1, 2, 3}, []float64{1, 2}, -2)
		assert.False(t, ok)
		_, ok = PearsonAt(nil, []float64{1, 2}, 0)
		assert.False(t, ok)
	})
}

func TestCorrelationCurve(t *testing.T) {
	curve := &CorrelationCurve{
		Track: "LR",
		Candidates: []OffsetCandidate{
			{Offset: 10, Coefficient: 0.1},
			{Offset: -20, Coefficient: 0.2},
			{Offset: 30, Coefficient: math.NaN()},
		},
	}
	assert.Equal(t, Grid{10, -20, 30}, curve.Offsets())
	lo, hi := curve.Range()
	assert.Equal(t, -20, lo)
	assert.Equal(t, 30, hi)

	err := &InsufficientOverlapError{Offset: -5, ReferenceLength: 3, CandidateLength: 4}
	assert.Contains(t, err.Error(), "offset -5")
}
