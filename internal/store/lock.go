package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// lockRetryDelay is how often a blocking Lock retries.
const lockRetryDelay = 200 * time.Millisecond

// WriterLock is the cross-process lock held by the one process that writes
// the index. Searches do not take it.
type WriterLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriterLock creates a lock for the index data directory.
// The lock file is <dir>/.writer.lock.
func NewWriterLock(dir string) *WriterLock {
	lockPath := filepath.Join(dir, ".writer.lock")
	return &WriterLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *WriterLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return lockedError(l.path, ctx.Err())
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return lockedError(l.path, nil)
	}

	l.locked = true
	return nil
}

// TryLock acquires the lock without blocking.
// It returns an ERR_302_INDEX_LOCKED error when another process holds it.
func (l *WriterLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return lockedError(l.path, nil)
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. It's safe to call on an unlocked WriterLock.
func (l *WriterLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *WriterLock) Path() string {
	return l.path
}

// IsLocked returns true if this WriterLock holds the lock.
func (l *WriterLock) IsLocked() bool {
	return l.locked
}

func lockedError(path string, cause error) error {
	return apperrors.New(apperrors.ErrCodeIndexLocked, "index is being written by another process", cause).
		WithDetail("lock", path).
		WithSuggestion("Wait for the running index job to finish")
}
