package aligner

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audioalign/pkg/annotation"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/audio/loader/loadertest"
	"github.com/xaionaro-go/audioalign/pkg/config"
	"github.com/xaionaro-go/audioalign/pkg/consensus"
	"github.com/xaionaro-go/audioalign/pkg/curvecache"
)

const testRate = 1000

// burstySignal is white noise with a gain changing every 100 samples, so
// that its envelope has a single best alignment with itself.
func burstySignal(length int) []int {
	rng := rand.New(rand.NewSource(1))
	samples := make([]float64, length)
	gain := 0.0
	for i := range samples {
		if i%100 == 0 {
			gain = rng.Float64()
		}
		samples[i] = gain * (rng.Float64()*2 - 1) * 0.9
	}
	return loadertest.ToS16(samples)
}

func stereo(mono []int) []int {
	result := make([]int, 0, len(mono)*2)
	for _, v := range mono {
		result = append(result, v, v)
	}
	return result
}

type testSession struct {
	Dir        string
	Reference  []int
	Annotation string
}

func newTestSession(t *testing.T, delays map[string]int) *testSession {
	dir := t.TempDir()
	reference := burstySignal(5000)
	require.NoError(t, loadertest.WriteWAV(filepath.Join(dir, "reference.wav"), testRate, 16, 1, reference))
	for name, delay := range delays {
		path := filepath.Join(dir, "rec_"+name+".WAV")
		require.NoError(t, loadertest.WriteWAV(path, testRate, 16, 2, stereo(reference[delay:])))
	}
	annotationPath := filepath.Join(dir, "session.eaf")
	require.NoError(t, os.WriteFile(annotationPath, []byte(
		"<TIME_SLOT TIME_SLOT_ID=\"ts1\" TIME_VALUE=\"1000\"/>\n"+
			"<TIME_SLOT TIME_SLOT_ID=\"ts2\" TIME_VALUE=\"0\"/>\n",
	), 0o644))
	return &testSession{
		Dir:        dir,
		Reference:  reference,
		Annotation: annotationPath,
	}
}

func (s *testSession) config() *config.Config {
	cfg := config.Default()
	cfg.Sessions = []config.Session{{
		Dir:                   s.Dir,
		Reference:             filepath.Join(s.Dir, "reference.wav"),
		TrackPrefix:           "rec",
		AnnotationSource:      s.Annotation,
		AnnotationDestination: filepath.Join(s.Dir, "session.aligned.eaf"),
	}}
	cfg.Analysis.SampleRate = testRate
	cfg.Analysis.RMSWindowSeconds = 0.01
	cfg.Analysis.OffsetStartSeconds = -1
	cfg.Analysis.OffsetEndSeconds = 1
	cfg.Analysis.OffsetStepSeconds = 0.01
	return &cfg
}

func TestAlignSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, map[string]int{"LR": 200, "TR1": 200})

	a, err := New(s.config())
	require.NoError(t, err)
	results, err := a.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	require.NotNil(t, result.Consensus)
	assert.Equal(t, 200, result.Consensus.Offset)
	require.Len(t, result.Tracks, 2)
	for _, track := range result.Tracks {
		assert.False(t, track.Cached)
		assert.Len(t, track.Curve.Candidates, 201)
		assert.FileExists(t, filepath.Join(s.Dir, curvecache.FileName(track.Path)))
	}
	assert.Equal(t, "LR", result.Tracks[0].Name)
	assert.Equal(t, "TR1", result.Tracks[1].Name)

	require.NotNil(t, result.Annotation)
	assert.Equal(t, int64(200), result.Annotation.OffsetMS)
	assert.Equal(t, 2, result.Annotation.Timestamps)
	shifted, err := os.ReadFile(filepath.Join(s.Dir, "session.aligned.eaf"))
	require.NoError(t, err)
	assert.Equal(t,
		"<TIME_SLOT TIME_SLOT_ID=\"ts1\" TIME_VALUE=\"1200\"/>\n"+
			"<TIME_SLOT TIME_SLOT_ID=\"ts2\" TIME_VALUE=\"200\"/>\n",
		string(shifted),
	)
}

func TestAlignSessionUsesCachedCurves(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, map[string]int{"LR": 200})

	cfg := s.config()
	cfg.Sessions[0].AnnotationSource = ""
	cfg.Sessions[0].AnnotationDestination = ""
	a, err := New(cfg)
	require.NoError(t, err)

	_, err = a.AlignSession(ctx, cfg.Sessions[0])
	require.NoError(t, err)

	// neither the reference nor the track is decoded again
	require.NoError(t, os.Remove(cfg.Sessions[0].Reference))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "rec_LR.WAV"), []byte("garbage"), 0o644))

	result, err := a.AlignSession(ctx, cfg.Sessions[0])
	require.NoError(t, err)
	require.Len(t, result.Tracks, 1)
	assert.True(t, result.Tracks[0].Cached)
	assert.Equal(t, 200, result.Consensus.Offset)
	assert.Nil(t, result.Annotation)
}

func TestAlignSessionOverwriteGuard(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, map[string]int{"LR": 200})

	cfg := s.config()
	destination := cfg.Sessions[0].AnnotationDestination
	require.NoError(t, os.WriteFile(destination, []byte("keep me"), 0o644))

	a, err := New(cfg)
	require.NoError(t, err)
	result, err := a.AlignSession(ctx, cfg.Sessions[0])
	var guardErr *annotation.OverwriteGuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, destination, guardErr.Path)
	assert.Nil(t, result)
	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(content))

	// refused before any search
	assert.NoFileExists(t, filepath.Join(s.Dir, curvecache.FileName("rec_LR.WAV")))

	cfg.Annotation.Overwrite = true
	_, err = a.AlignSession(ctx, cfg.Sessions[0])
	require.NoError(t, err)
	content, err = os.ReadFile(destination)
	require.NoError(t, err)
	assert.Contains(t, string(content), `TIME_VALUE="1200"`)
}

func TestAlignSessionRawInput(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, nil)

	data := []byte("HEADER!!")
	for _, v := range stereo(s.Reference[200:]) {
		v <<= 8
		data = append(data, byte(v), byte(v>>8), byte(v>>16))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "eeg.raw"), data, 0o644))

	cfg := s.config()
	cfg.Sessions[0].TrackPrefix = ""
	cfg.Sessions[0].Tracks = []config.Track{{Name: "EEG", File: filepath.Join(s.Dir, "eeg.raw")}}
	cfg.Sessions[0].AnnotationSource = ""
	cfg.Sessions[0].AnnotationDestination = ""
	cfg.Input = config.Input{
		RawFormat:      "s24le",
		RawChannels:    2,
		RawHeaderBytes: int64(len("HEADER!!")),
	}

	a, err := New(cfg)
	require.NoError(t, err)
	result, err := a.AlignSession(ctx, cfg.Sessions[0])
	require.NoError(t, err)
	require.Len(t, result.Tracks, 1)
	assert.Equal(t, 200, result.Consensus.Offset)

	cfg.Input.RawFormat = "s12le"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestAlignSessionUnsupportedTrack(t *testing.T) {
	s := newTestSession(t, map[string]int{"LR": 200})

	cfg := s.config()
	cfg.Sessions[0].Tracks = []config.Track{
		{Name: "LR", File: filepath.Join(s.Dir, "rec_LR.WAV")},
		{Name: "EEG", File: filepath.Join(s.Dir, "eeg.flac")},
	}
	a, err := New(cfg)
	require.NoError(t, err)
	_, err = a.AlignSession(context.Background(), cfg.Sessions[0])
	var formatErr *audio.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, filepath.Join(s.Dir, "eeg.flac"), formatErr.Path)
	assert.NoFileExists(t, filepath.Join(s.Dir, curvecache.FileName("rec_LR.WAV")))
}

func TestAlignSessionDisagreement(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, map[string]int{"LR": 200, "TR1": 400})

	cfg := s.config()
	a, err := New(cfg)
	require.NoError(t, err)
	result, err := a.AlignSession(ctx, cfg.Sessions[0])

	var disagreement *consensus.DisagreementError
	require.ErrorAs(t, err, &disagreement)
	assert.Equal(t, 200, disagreement.Spread)
	assert.Nil(t, result.Consensus)
	assert.NoFileExists(t, cfg.Sessions[0].AnnotationDestination)

	// the curves survive the failed consensus
	for _, name := range []string{"rec_LR.WAV", "rec_TR1.WAV"} {
		assert.FileExists(t, filepath.Join(s.Dir, curvecache.FileName(name)))
	}
}

func TestAlignSessionFFTWithWorkers(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, map[string]int{"LR": 200, "TR1": 200, "TR2": 200})

	cfg := s.config()
	cfg.Analysis.Method = config.MethodFFT
	cfg.Analysis.Workers = 3
	cfg.Analysis.CrossCheck = true
	cfg.Sessions[0].AnnotationSource = ""
	cfg.Sessions[0].AnnotationDestination = ""

	a, err := New(cfg)
	require.NoError(t, err)
	result, err := a.AlignSession(ctx, cfg.Sessions[0])
	require.NoError(t, err)
	assert.Equal(t, 200, result.Consensus.Offset)
	require.Len(t, result.Tracks, 3)
	for _, track := range result.Tracks {
		assert.NotNil(t, track.CrossCheck, track.Name)
	}
}

func TestAlignSessionTrackFailureKeepsSiblings(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, map[string]int{"LR": 200})
	require.NoError(t, loadertest.WriteWAV(filepath.Join(s.Dir, "rec_TR1.WAV"), 48000, 16, 1, s.Reference))

	cfg := s.config()
	a, err := New(cfg)
	require.NoError(t, err)
	result, err := a.AlignSession(ctx, cfg.Sessions[0])
	require.Error(t, err)
	require.Len(t, result.Tracks, 1)
	assert.Equal(t, "LR", result.Tracks[0].Name)
	assert.FileExists(t, filepath.Join(s.Dir, curvecache.FileName("rec_LR.WAV")))
	assert.NoFileExists(t, filepath.Join(s.Dir, curvecache.FileName("rec_TR1.WAV")))
}

func TestAlignSessionLocked(t *testing.T) {
	s := newTestSession(t, map[string]int{"LR": 200})
	lock := flock.New(filepath.Join(s.Dir, LockFileName))
	ok, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Unlock()

	cfg := s.config()
	a, err := New(cfg)
	require.NoError(t, err)
	_, err = a.AlignSession(context.Background(), cfg.Sessions[0])
	assert.True(t, errors.Is(err, ErrSessionLocked), err)
}

func TestDiscoverTracks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"rec_LR.WAV",
		"rec_LR-Mono.WAV",
		"rec_TR1.wav",
		"rec_TR2-Mono.wav",
		"rec_notes.txt",
		"other_TR3.wav",
		"rec.wav",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	tracks, err := DiscoverTracks(dir, "rec", "")
	require.NoError(t, err)
	assert.Equal(t, []TrackFile{
		{Name: "LR", Path: filepath.Join(dir, "rec_LR.WAV")},
		{Name: "TR1", Path: filepath.Join(dir, "rec_TR1.wav")},
		{Name: "TR2-Mono", Path: filepath.Join(dir, "rec_TR2-Mono.wav")},
	}, tracks)

	tracks, err = DiscoverTracks(dir, "rec", filepath.Join(dir, "rec_TR1.wav"))
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestAssignTracksExplicit(t *testing.T) {
	tracks, err := AssignTracks(config.Session{
		Dir:         "/nonexistent",
		TrackPrefix: "rec",
		Tracks:      []config.Track{{Name: "EEG", File: "/nonexistent/eeg.wav"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []TrackFile{{Name: "EEG", Path: "/nonexistent/eeg.wav"}}, tracks)
}
