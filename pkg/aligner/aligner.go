// Package aligner runs the whole offset estimation of recording sessions:
// decoding, envelopes, correlation curves, consensus and the shifting of
// the annotation document.
package aligner

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audioalign/pkg/annotation"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/audioalign/pkg/audio/loader"
	"github.com/xaionaro-go/audioalign/pkg/config"
	"github.com/xaionaro-go/audioalign/pkg/consensus"
	"github.com/xaionaro-go/audioalign/pkg/curvecache"
	"github.com/xaionaro-go/audioalign/pkg/envelope"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
	"github.com/xaionaro-go/audioalign/pkg/syncer/implementations/bruteforce"
	"github.com/xaionaro-go/audioalign/pkg/syncer/implementations/fft"
	"github.com/xaionaro-go/audioalign/pkg/syncer/implementations/gccphat"
	"github.com/xaionaro-go/observability"
)

type Aligner struct {
	Config   *config.Config
	Loader   *loader.Loader
	Searcher syncer.Searcher
	Resolver *consensus.Resolver
	Grid     syncer.Grid
	Window   int
}

// TrackReport is what was found out about a single track.
type TrackReport struct {
	TrackFile

	// Cached is true if the curve was read from its cache file.
	Cached bool
	Curve  *syncer.CorrelationCurve

	// CrossCheck is the GCC-PHAT estimate; nil unless requested.
	CrossCheck *syncer.ShiftResult
}

type SessionResult struct {
	Dir        string
	Tracks     []TrackReport
	Consensus  *consensus.Result
	Annotation *annotation.Report
}

// NewSearcher returns the Searcher of the given analysis method.
func NewSearcher(method string) (syncer.Searcher, error) {
	switch method {
	case config.MethodBruteforce:
		return bruteforce.NewSearcher(), nil
	case config.MethodFFT:
		return fft.NewSearcher(), nil
	default:
		return nil, fmt.Errorf("unknown analysis method '%s'", method)
	}
}

func New(cfg *config.Config) (*Aligner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	grid, err := cfg.Grid()
	if err != nil {
		return nil, err
	}
	searcher, err := NewSearcher(cfg.Analysis.Method)
	if err != nil {
		return nil, err
	}
	policy, err := cfg.TieBreakPolicy()
	if err != nil {
		return nil, err
	}
	resolver := consensus.NewResolver(cfg.Rate(), cfg.Analysis.ToleranceFraction)
	resolver.TieBreak = policy
	rawFormat, err := cfg.RawPCMFormat()
	if err != nil {
		return nil, err
	}
	l := loader.New(cfg.Rate())
	l.Decoders = []loader.Decoder{&loader.DecoderRaw{
		Format:      rawFormat,
		SampleRate:  cfg.Rate(),
		HeaderBytes: cfg.Input.RawHeaderBytes,
	}}

	return &Aligner{
		Config:   cfg,
		Loader:   l,
		Searcher: searcher,
		Resolver: resolver,
		Grid:     grid,
		Window:   cfg.WindowSamples(),
	}, nil
}

// Run aligns every configured session. A failing session does not stop
// the following ones; all the errors are returned together.
func (a *Aligner) Run(ctx context.Context) (_ret []*SessionResult, _err error) {
	logger.Tracef(ctx, "Run")
	defer func() { logger.Tracef(ctx, "/Run: %v", _err) }()

	var mErr *multierror.Error
	for _, session := range a.Config.Sessions {
		result, err := a.AlignSession(ctx, session)
		if result != nil {
			_ret = append(_ret, result)
		}
		if err != nil {
			mErr = multierror.Append(mErr, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return _ret, mErr.ErrorOrNil()
}

// AlignSession estimates the offset of a single session. On failure the
// partial result is returned along with the error.
func (a *Aligner) AlignSession(
	ctx context.Context,
	session config.Session,
) (_ret *SessionResult, _err error) {
	logger.Tracef(ctx, "AlignSession(%s)", session.Dir)
	defer func() { logger.Tracef(ctx, "/AlignSession(%s): %v", session.Dir, _err) }()

	lock, err := lockSession(session.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	tracks, err := AssignTracks(session)
	if err != nil {
		return nil, fmt.Errorf("unable to assign the tracks of '%s': %w", session.Dir, err)
	}
	logger.Debugf(ctx, "session '%s': %d tracks against '%s'", session.Dir, len(tracks), session.Reference)
	if err := a.precheck(session, tracks); err != nil {
		return nil, err
	}

	result := &SessionResult{Dir: session.Dir}
	store := curvecache.NewStore(session.Dir)

	var reference []float64
	needReference, err := a.needsReference(store, tracks)
	if err != nil {
		return result, err
	}
	if needReference {
		reference, err = a.envelopeOf(ctx, session.Reference)
		if err != nil {
			return result, fmt.Errorf("unable to process the reference: %w", err)
		}
	} else {
		logger.Infof(ctx, "session '%s': all the correlation curves are cached", session.Dir)
	}

	reports, err := a.alignTracks(ctx, store, reference, tracks)
	for _, report := range reports {
		if report != nil {
			result.Tracks = append(result.Tracks, *report)
		}
	}
	if err != nil {
		return result, err
	}

	curves := make([]*syncer.CorrelationCurve, 0, len(result.Tracks))
	for _, report := range result.Tracks {
		curves = append(curves, report.Curve)
	}
	agreed, err := a.Resolver.Resolve(ctx, curves...)
	if err != nil {
		return result, fmt.Errorf("unable to resolve the offset of '%s': %w", session.Dir, err)
	}
	result.Consensus = agreed
	rate := a.Config.Rate()
	logger.Infof(ctx, "session '%s': offset %d samples (%v)", session.Dir, agreed.Offset, audio.SamplesToDuration(agreed.Offset, rate))
	for _, report := range result.Tracks {
		a.logCrossCheck(ctx, report, agreed)
	}

	if session.AnnotationSource == "" {
		return result, nil
	}
	result.Annotation, err = annotation.ShiftFile(
		ctx,
		session.AnnotationSource,
		session.AnnotationDestination,
		a.Config.Annotation.Marker,
		agreed.Offset,
		rate,
		a.Config.Annotation.Overwrite,
	)
	if err != nil {
		return result, fmt.Errorf("unable to shift '%s': %w", session.AnnotationSource, err)
	}
	logger.Infof(ctx, "wrote '%s': %d timestamps shifted by %dms", session.AnnotationDestination, result.Annotation.Timestamps, result.Annotation.OffsetMS)
	return result, nil
}

// precheck fails a session before any decoding if it is bound to fail
// afterwards.
func (a *Aligner) precheck(session config.Session, tracks []TrackFile) error {
	if session.AnnotationSource != "" {
		if err := annotation.CheckDestination(session.AnnotationDestination, a.Config.Annotation.Overwrite); err != nil {
			return fmt.Errorf("unable to shift '%s': %w", session.AnnotationSource, err)
		}
	}
	paths := []string{session.Reference}
	for _, track := range tracks {
		paths = append(paths, track.Path)
	}
	for _, path := range paths {
		if !a.Loader.Supports(path) {
			return audio.NewFormatError(path, "no decoder registered for this file extension")
		}
	}
	return nil
}

func (a *Aligner) needsReference(store *curvecache.Store, tracks []TrackFile) (bool, error) {
	if a.Config.Analysis.CrossCheck {
		return true, nil
	}
	for _, track := range tracks {
		cached, err := store.Exists(track.Path)
		if err != nil {
			return false, err
		}
		if !cached {
			return true, nil
		}
	}
	return false, nil
}

// alignTracks processes the tracks with up to Analysis.Workers of them
// at the same time. The returned slice is in the order of tracks and has
// nil entries for the failed ones.
func (a *Aligner) alignTracks(
	ctx context.Context,
	store *curvecache.Store,
	reference []float64,
	tracks []TrackFile,
) ([]*TrackReport, error) {
	workers := max(a.Config.Analysis.Workers, 1)
	reports := make([]*TrackReport, len(tracks))

	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
		mErr  *multierror.Error
	)
	sem := make(chan struct{}, workers)
	for idx, track := range tracks {
		sem <- struct{}{}
		wg.Add(1)
		observability.Go(ctx, func() {
			defer wg.Done()
			defer func() { <-sem }()
			report, err := a.alignTrack(ctx, store, reference, track)
			if err != nil {
				mutex.Lock()
				mErr = multierror.Append(mErr, fmt.Errorf("track %s: %w", track.Name, err))
				mutex.Unlock()
				return
			}
			reports[idx] = report
		})
	}
	wg.Wait()
	return reports, mErr.ErrorOrNil()
}

func (a *Aligner) alignTrack(
	ctx context.Context,
	store *curvecache.Store,
	reference []float64,
	track TrackFile,
) (_ret *TrackReport, _err error) {
	logger.Tracef(ctx, "alignTrack(%s)", track.Name)
	defer func() { logger.Tracef(ctx, "/alignTrack(%s): %v", track.Name, _err) }()

	report := &TrackReport{TrackFile: track}
	cached, err := store.Exists(track.Path)
	if err != nil {
		return nil, err
	}
	if cached {
		curve, err := store.Load(ctx, track.Name, track.Path)
		if err != nil {
			return nil, err
		}
		if !curve.Offsets().Equal(a.Grid) {
			logger.Warnf(ctx, "the cached curve '%s' was computed on another offset grid; delete it to recompute", store.Path(track.Path))
		}
		report.Cached = true
		report.Curve = curve
		if !a.Config.Analysis.CrossCheck {
			return report, nil
		}
	}

	candidate, err := a.envelopeOf(ctx, track.Path)
	if err != nil {
		return nil, err
	}

	if report.Curve == nil {
		curve, err := a.Searcher.Search(ctx, track.Name, reference, candidate, a.Grid)
		if err != nil {
			return nil, fmt.Errorf("unable to correlate '%s' with the reference: %w", track.Path, err)
		}
		if err := store.Save(ctx, track.Path, curve); err != nil {
			return nil, err
		}
		report.Curve = curve
	}

	if a.Config.Analysis.CrossCheck {
		lo, hi := a.Grid.Range()
		estimator := gccphat.NewEstimator(max(-lo, hi))
		estimate, err := estimator.Estimate(ctx, reference, candidate)
		if err != nil {
			logger.Warnf(ctx, "unable to cross-check track %s: %v", track.Name, err)
		} else {
			report.CrossCheck = &estimate
		}
	}
	return report, nil
}

// envelopeOf decodes the recording at path chunk by chunk, keeping only
// its envelope.
func (a *Aligner) envelopeOf(
	ctx context.Context,
	path string,
) ([]float64, error) {
	stream, err := envelope.NewStream(a.Window)
	if err != nil {
		return nil, err
	}

	var result []float64
	if info, err := a.Loader.Probe(ctx, path); err == nil && info.Frames > 0 {
		result = make([]float64, 0, info.Frames)
	}
	total, err := a.Loader.Stream(ctx, path, func(chunk []float64) error {
		result = stream.Push(result, chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result = stream.Finish(result)
	logger.Debugf(ctx, "envelope of '%s': %d samples, window %d", path, total, a.Window)
	return result, nil
}

func (a *Aligner) logCrossCheck(
	ctx context.Context,
	report TrackReport,
	agreed *consensus.Result,
) {
	if report.CrossCheck == nil {
		return
	}
	estimate := int(math.Round(report.CrossCheck.Shift))
	diff := estimate - agreed.Offset
	if diff < -a.Resolver.Tolerance || diff > a.Resolver.Tolerance {
		logger.Warnf(ctx, "track %s: GCC-PHAT estimates %d samples (confidence %.3f), %d away from the agreed offset", report.Name, estimate, report.CrossCheck.Confidence, diff)
		return
	}
	logger.Infof(ctx, "track %s: GCC-PHAT estimates %d samples (confidence %.3f)", report.Name, estimate, report.CrossCheck.Confidence)
}
