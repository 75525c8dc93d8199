//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
)

// LockFilename marks a source tree that is being staged right now.
const LockFilename = ".bauset.lock"

// lockAttempts bounds stale-lock recovery so two racing runs cannot loop forever.
const lockAttempts = 2

// RunLock is an exclusive claim on a source tree held for one pipeline run.
type RunLock struct {
	path string
}

// AcquireRunLock creates the lock file in dir, recovering it when its owner is gone.
func AcquireRunLock(ctx context.Context, dir string) (*RunLock, error) {
	path := filepath.Join(dir, LockFilename)

	for range lockAttempts {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
		if err == nil {
			_, writeErr := f.WriteString(strconv.Itoa(os.Getpid()))
			closeErr := f.Close()

			if err = errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("%w: write run lock: %w", build.ErrIO, err)
			}

			return &RunLock{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: create run lock: %w", build.ErrIO, err)
		}

		if isLockHeld(ctx, path) {
			return nil, fmt.Errorf("%w: %s", build.ErrRunInProgress, path)
		}

		logger.WarnKV(ctx, "Removing stale run lock", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: remove stale run lock: %w", build.ErrIO, err)
		}
	}

	return nil, fmt.Errorf("%w: %s", build.ErrRunInProgress, path)
}

// Release removes the lock file. Releasing a nil lock is a no-op.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: release run lock: %w", build.ErrIO, err)
	}

	return nil
}

// isLockHeld reports whether the PID recorded in the lock belongs to a live process.
func isLockHeld(ctx context.Context, path string) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		// Removed between open and read: let the caller retry.
		return !errors.Is(err, os.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		logger.DebugKV(ctx, "Run lock has no valid PID", "path", path)
		return false
	}

	if pid == os.Getpid() {
		return true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to inspect run lock owner", "pid", pid, "error", err)
		return true
	}

	return process != nil
}
