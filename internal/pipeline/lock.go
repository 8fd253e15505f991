package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the per-output-directory lock held while a batch or a
// single-clip request writes into it.
const LockFileName = ".voiceover.lock"

// ErrLocked reports that another process is writing into the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

// OutputLock is a held lock on an output directory.
type OutputLock struct {
	lock *flock.Flock
}

// AcquireLock takes the exclusive lock for outputDir without blocking,
// creating the directory if needed.
func AcquireLock(outputDir string) (*OutputLock, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, outputDir)
	}
	return &OutputLock{lock: lock}, nil
}

// Path returns the lock file location.
func (l *OutputLock) Path() string { return l.lock.Path() }

// Release unlocks. It is safe to call more than once.
func (l *OutputLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
