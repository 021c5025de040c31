package aligner

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in every session directory while it is being
// aligned.
const LockFileName = ".audioalign.lock"

// ErrSessionLocked means that another run is aligning the same session.
var ErrSessionLocked = errors.New("the session is being aligned by another run")

func lockSession(dir string) (*flock.Flock, error) {
	lockPath := filepath.Join(dir, LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unable to acquire the lock '%s': %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("'%s': %w", dir, ErrSessionLocked)
	}
	return lock, nil
}
