// Package lock keeps two watchers from running against the same lock file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock file is held by another process")

// Lock is an acquired lock file.
type Lock struct {
	f *flock.Flock
}

// Acquire takes an exclusive, non-blocking lock on path. The file and its
// directory are created when missing.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	f := flock.New(path)
	locked, err := f.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return &Lock{f: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.f.Path()
}

// Release unlocks the file. The file itself is left in place.
func (l *Lock) Release() error {
	return l.f.Unlock()
}
