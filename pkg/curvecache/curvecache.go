// Package curvecache persists correlation curves next to the recordings
// they were computed from, so that a repeated run can skip the search.
//
// A curve is stored as plain text, one "<offset>\t<coefficient>" line
// per tested offset, in the order of the grid.
package curvecache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audioalign/pkg/syncer"
	"github.com/xaionaro-go/datacounter"
)

const (
	FilePrefix = "corr_"
	FileSuffix = ".txt"

	FileMode fs.FileMode = 0o644
)

// ParseError describes a line of a cache file that could not be understood.
type ParseError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: unable to parse '%s': %v", e.Path, e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FileName returns the name of the cache file of the given recording.
func FileName(audioFile string) string {
	return FilePrefix + filepath.Base(audioFile) + FileSuffix
}

// Encode writes curve in the cache format.
func Encode(w io.Writer, curve *syncer.CorrelationCurve) error {
	bw := bufio.NewWriter(w)
	for _, c := range curve.Candidates {
		if _, err := fmt.Fprintf(bw, "%d\t%s\n", c.Offset, formatCoefficient(c.Coefficient)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatCoefficient(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Decode parses a curve in the cache format. Blank lines are skipped.
func Decode(r io.Reader, track string) (*syncer.CorrelationCurve, error) {
	curve := &syncer.CorrelationCurve{Track: track}
	seen := map[int]struct{}{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, &ParseError{Line: lineNum, Text: line, Err: fmt.Errorf("expected 2 tab-separated fields, got %d", len(fields))}
		}
		offset, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Err: err}
		}
		coef, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Err: err}
		}
		if _, ok := seen[offset]; ok {
			return nil, &ParseError{Line: lineNum, Text: line, Err: fmt.Errorf("offset %d is listed twice", offset)}
		}
		seen[offset] = struct{}{}
		curve.Candidates = append(curve.Candidates, syncer.OffsetCandidate{
			Offset:      offset,
			Coefficient: coef,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return curve, nil
}

// Store keeps cache files in a single directory.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) Path(audioFile string) string {
	return filepath.Join(s.Dir, FileName(audioFile))
}

// Exists reports whether a curve of audioFile is cached.
func (s *Store) Exists(audioFile string) (bool, error) {
	_, err := os.Stat(s.Path(audioFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("unable to stat '%s': %w", s.Path(audioFile), err)
	}
}

// Load reads the cached curve of audioFile. If there is none, the
// returned error matches fs.ErrNotExist.
func (s *Store) Load(
	ctx context.Context,
	track string,
	audioFile string,
) (*syncer.CorrelationCurve, error) {
	path := s.Path(audioFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	curve, err := Decode(f, track)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			parseErr.Path = path
		}
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	logger.Debugf(ctx, "loaded the cached curve of %s from '%s': %d offsets", track, path, len(curve.Candidates))
	return curve, nil
}

// Save writes curve as the cache of audioFile. The file appears
// atomically: a reader never observes a partially written curve.
func (s *Store) Save(
	ctx context.Context,
	audioFile string,
	curve *syncer.CorrelationCurve,
) (_err error) {
	path := s.Path(audioFile)
	tmp, err := os.CreateTemp(s.Dir, "."+FileName(audioFile)+".*")
	if err != nil {
		return fmt.Errorf("unable to create a temporary file in '%s': %w", s.Dir, err)
	}
	defer func() {
		if _err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(FileMode); err != nil {
		return fmt.Errorf("unable to chmod '%s': %w", tmp.Name(), err)
	}
	counter := datacounter.NewWriterCounter(tmp)
	if err := Encode(counter, curve); err != nil {
		return fmt.Errorf("unable to write the curve to '%s': %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("unable to sync '%s': %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close '%s': %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to move the curve into '%s': %w", path, err)
	}
	logger.Debugf(ctx, "saved the curve of %s to '%s' (%d bytes)", curve.Track, path, counter.Count())
	return nil
}
