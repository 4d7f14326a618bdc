// Package lock serialises index runs against one database across processes.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
)

// Suffix is appended to the database path to name its lock file.
const Suffix = ".lock"

// RunLock is an exclusive advisory lock held for the duration of a run.
// Two schedulers on the same database would race on the completion flag,
// so only one may run at a time.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// ForDatabase returns the run lock guarding dbPath. The lock file lives
// next to the database.
func ForDatabase(dbPath string) *RunLock {
	lockPath := dbPath + Suffix
	return &RunLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryAcquire takes the lock without blocking. It fails with
// ERR_202_RUN_LOCKED when another process holds it.
func (l *RunLock) TryAcquire() error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return l.heldError()
	}

	l.locked = true
	return nil
}

// Acquire waits for the lock, polling every retryDelay, until ctx is done.
func (l *RunLock) Acquire(ctx context.Context, retryDelay time.Duration) error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	acquired, err := l.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return l.heldError()
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return l.heldError()
	}

	l.locked = true
	return nil
}

// Release unlocks. Safe to call more than once or without holding the lock.
func (l *RunLock) Release() error {
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
func (l *RunLock) Path() string {
	return l.path
}

// IsLocked reports whether this RunLock holds the lock.
func (l *RunLock) IsLocked() bool {
	return l.locked
}

func (l *RunLock) ensureDir() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}

func (l *RunLock) heldError() error {
	return geoerrors.New(geoerrors.ErrCodeRunLocked, "another index run holds the database lock", nil).
		WithDetail("lock", l.path).
		WithSuggestion("Wait for the other run to finish, or remove " + l.path + " if no geoidx process is running")
}
