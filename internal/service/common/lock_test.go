//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bauset/internal/domain/build"
)

// TestRunLock_ExclusiveWithinProcess verifies that a held lock blocks a second run.
func TestRunLock_ExclusiveWithinProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := AcquireRunLock(context.Background(), dir)
	require.NoError(t, err)

	_, err = AcquireRunLock(context.Background(), dir)
	require.ErrorIs(t, err, build.ErrRunInProgress)

	require.NoError(t, lock.Release())
	require.False(t, Exists(filepath.Join(dir, LockFilename)))

	lock, err = AcquireRunLock(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestRunLock_RecoversStaleLock checks that locks owned by dead or unknown PIDs are replaced.
func TestRunLock_RecoversStaleLock(t *testing.T) {
	t.Parallel()

	for name, contents := range map[string]string{
		"dead pid": strconv.Itoa(1 << 30),
		"garbage":  "not-a-pid",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, LockFilename)
			require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

			lock, err := AcquireRunLock(context.Background(), dir)
			require.NoError(t, err)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Equal(t, strconv.Itoa(os.Getpid()), string(got))
			require.NoError(t, lock.Release())
		})
	}
}

// TestRunLock_ReleaseNil is a no-op.
func TestRunLock_ReleaseNil(t *testing.T) {
	t.Parallel()

	var lock *RunLock
	require.NoError(t, lock.Release())
}
