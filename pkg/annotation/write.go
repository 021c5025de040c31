package annotation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audioalign/pkg/audio"
	"github.com/xaionaro-go/datacounter"
)

// OverwriteGuardError is returned when the destination already exists
// and overwriting was not allowed.
type OverwriteGuardError struct {
	Path string
}

func (e *OverwriteGuardError) Error() string {
	return fmt.Sprintf("'%s' already exists; refusing to overwrite it without an explicit permission", e.Path)
}

// FileMode is the permission of the written documents.
const FileMode fs.FileMode = 0o644

// CheckDestination returns an *OverwriteGuardError if path exists and
// overwrite is false.
func CheckDestination(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return &OverwriteGuardError{Path: path}
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("unable to stat '%s': %w", path, err)
	}
}

// WriteFile stores doc at path.
func WriteFile(
	ctx context.Context,
	path string,
	doc *Document,
	overwrite bool,
) (_err error) {
	if err := CheckDestination(path, overwrite); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("unable to create a temporary file next to '%s': %w", path, err)
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
	if _, err := counter.Write(doc.Content); err != nil {
		return fmt.Errorf("unable to write '%s': %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to close '%s': %w", tmp.Name(), err)
	}
	if !overwrite {
		// unlike os.Rename, os.Link never replaces an existing destination
		if err := os.Link(tmp.Name(), path); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return &OverwriteGuardError{Path: path}
			}
			return fmt.Errorf("unable to create '%s': %w", path, err)
		}
		os.Remove(tmp.Name())
	} else if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("unable to move the document into '%s': %w", path, err)
	}
	logger.Debugf(ctx, "wrote %d bytes to '%s'", counter.Count(), path)
	return nil
}

// Report summarizes a ShiftFile call.
type Report struct {
	OffsetMS   int64
	Timestamps int
	Clamped    int
}

// ShiftFile reads the document at src, shifts it by offsetSamples and
// writes the result to dst.
func ShiftFile(
	ctx context.Context,
	src, dst string,
	marker string,
	offsetSamples int,
	sampleRate audio.SampleRate,
	overwrite bool,
) (_ret *Report, _err error) {
	logger.Tracef(ctx, "ShiftFile(%s -> %s, %d)", src, dst, offsetSamples)
	defer func() { logger.Tracef(ctx, "/ShiftFile(%s -> %s, %d): %v %v", src, dst, offsetSamples, _ret, _err) }()

	if err := CheckDestination(dst, overwrite); err != nil {
		return nil, err
	}
	if sameFile(src, dst) {
		return nil, fmt.Errorf("the destination '%s' is the source document itself", dst)
	}

	doc, err := ReadFile(src, marker)
	if err != nil {
		return nil, err
	}
	offsetMS := OffsetMilliseconds(offsetSamples, sampleRate)
	shifted, clamped := doc.Shift(offsetMS)
	if clamped > 0 {
		logger.Warnf(ctx, "%d of %d timestamps of '%s' became negative and were clamped to zero", clamped, len(doc.Timestamps), src)
	}
	if err := WriteFile(ctx, dst, shifted, overwrite); err != nil {
		return nil, err
	}
	return &Report{
		OffsetMS:   offsetMS,
		Timestamps: len(doc.Timestamps),
		Clamped:    clamped,
	}, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
