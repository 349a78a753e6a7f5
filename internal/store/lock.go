package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// DirLock is a cross-process lock on a store directory, held for the life
// of an open engine so only one process writes a store at a time.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates the lock for dir. The lock file is <dir>/.ragstore.lock.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, LockFile)
	return &DirLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. A lock held elsewhere fails
// with ErrCodeStoreLocked.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return ragerrors.StorageError("failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return ragerrors.StorageError("failed to acquire store lock", err).WithDetail("path", l.path)
	}
	if !acquired {
		return ragerrors.New(ragerrors.ErrCodeStoreLocked,
			fmt.Sprintf("store %s is in use by another process", filepath.Dir(l.path)), nil).
			WithSuggestion("Stop the other ragstore process or use a different storage path")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. It is safe to call on an unlocked DirLock.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release store lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// IsLocked reports whether this DirLock holds the lock.
func (l *DirLock) IsLocked() bool {
	return l.locked
}
