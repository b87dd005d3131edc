package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// fileLock guards construction of the process-wide Pipeline singleton so
// two processes never open the same cache directory's SQLite database and
// vector snapshot at once. It works across platforms via gofrs/flock.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// newFileLock creates a lock file at <dir>/.lumen.lock.
func newFileLock(dir string) *fileLock {
	lockPath := filepath.Join(dir, ".lumen.lock")
	return &fileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// tryLock attempts to acquire the lock without blocking. Construction
// should fail fast rather than wait on another process's pipeline.
func (l *fileLock) tryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire pipeline lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// unlock releases the lock. Safe to call multiple times.
func (l *fileLock) unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release pipeline lock: %w", err)
	}
	l.locked = false
	return nil
}
