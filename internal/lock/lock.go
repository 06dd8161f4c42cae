// Package lock serializes start and stop invocations that share a state file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrHeld = errors.New("another invocation holds the lock")

// PathFor returns the lock file guarding stateFile.
func PathFor(stateFile string) string { return stateFile + ".lock" }

// Acquire takes the lock without blocking. The caller must call Unlock on
// the returned value.
func Acquire(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}
	return l, nil
}
