package curvecache

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "corr_HK1-MAMBU-REC_LR.WAV.txt", FileName("/data/session/HK1-MAMBU-REC_LR.WAV"))
	assert.Equal(t, filepath.Join("/s", "corr_a.wav.txt"), NewStore("/s").Path("a.wav"))
}

func TestEncodeDecode(t *testing.T) {
	curve := &syncer.CorrelationCurve{
		Track: "LR",
		Candidates: []syncer.OffsetCandidate{
			{Offset: -441000, Coefficient: 0.125},
			{Offset: -4410, Coefficient: math.NaN()},
			{Offset: 0, Coefficient: 0.9876543210123},
			{Offset: 4410, Coefficient: -1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, curve))
	assert.Equal(t, "-441000\t0.125\n-4410\tnan\n0\t0.9876543210123\n4410\t-1\n", buf.String())

	decoded, err := Decode(&buf, "LR")
	require.NoError(t, err)
	require.Len(t, decoded.Candidates, 4)
	assert.Equal(t, "LR", decoded.Track)
	for i, c := range curve.Candidates {
		assert.Equal(t, c.Offset, decoded.Candidates[i].Offset)
		if math.IsNaN(c.Coefficient) {
			assert.True(t, math.IsNaN(decoded.Candidates[i].Coefficient))
			continue
		}
		assert.Equal(t, c.Coefficient, decoded.Candidates[i].Coefficient)
	}
}

func TestDecode(t *testing.T) {
	t.Run("tolerant", func(t *testing.T) {
		curve, err := Decode(strings.NewReader("1\t0.5  \r\n\n2\tNaN\n"), "x")
		require.NoError(t, err)
		require.Len(t, curve.Candidates, 2)
		assert.Equal(t, 0.5, curve.Candidates[0].Coefficient)
		assert.True(t, math.IsNaN(curve.Candidates[1].Coefficient))
	})

	for name, content := range map[string]string{
		"fields":    "1\t0.5\t3\n",
		"offset":    "1.5\t0.5\n",
		"coef":      "1\tabc\n",
		"duplicate": "1\t0.5\n1\t0.6\n",
	} {
		t.Run("malformed_"+name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(content), "x")
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "%v", err)
			assert.NotZero(t, parseErr.Line)
		})
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewStore(dir)

	exists, err := s.Exists("a.wav")
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = s.Load(ctx, "a", "a.wav")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	curve := &syncer.CorrelationCurve{
		Track:      "a",
		Candidates: []syncer.OffsetCandidate{{Offset: -1, Coefficient: 0.25}, {Offset: 1, Coefficient: 0.5}},
	}
	require.NoError(t, s.Save(ctx, "a.wav", curve))

	exists, err = s.Exists("a.wav")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := s.Load(ctx, "a", "a.wav")
	require.NoError(t, err)
	assert.Equal(t, curve, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, "corr_a.wav.txt", entries[0].Name())
	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, FileMode, info.Mode().Perm())

	require.NoError(t, os.WriteFile(s.Path("b.wav"), []byte("oops\n"), 0644))
	_, err = s.Load(ctx, "b", "b.wav")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, s.Path("b.wav"), parseErr.Path)
}
