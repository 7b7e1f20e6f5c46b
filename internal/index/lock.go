package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// IndexLock provides cross-process locking of the index directory using
// gofrs/flock, so two ramsok processes cannot rebuild the same index
// concurrently. Works on all platforms (Unix, Linux, macOS, Windows).
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock over the given lock file path.
func NewIndexLock(path string) *IndexLock {
	return &IndexLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking. A lock held by
// another process is reported as ErrCodeIndexLocked, not a silent wait.
func (l *IndexLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return rserrors.New(rserrors.ErrCodeIndexLocked,
			fmt.Sprintf("index at %s is locked by another process", filepath.Dir(l.path)), nil).
			WithSuggestion("wait for the other ramsok process to finish")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}

// IsLocked reports whether this process holds the lock.
func (l *IndexLock) IsLocked() bool {
	return l.locked
}
