// Package state persists the supervisor's single lifecycle record.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store owns the on-disk lifecycle record. All mutation goes through
// Write and Clear; Read never fails the caller.
type Store struct {
	path string
}

func New(path string) *Store { return &Store{path: filepath.Clean(path)} }

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Write replaces the record atomically: the content is written to a temp
// file in the same directory, synced, and renamed over the target so a
// concurrent reader sees either the old or the new record.
func (s *Store) Write(r Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(r.Marshal()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Read returns the stored record. A missing or corrupt file reads as absent.
func (s *Store) Read() (Record, bool) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return Record{}, false
	}
	return Parse(b)
}

// Clear removes the record. Clearing an absent record is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}
