//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/oshokin/bauset/internal/domain/build"
)

// CopyFile copies the bytes of src to dst, truncating dst and applying src's permission bits.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", build.ErrIO, src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", build.ErrIO, src, err)
	}

	perm := info.Mode().Perm()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", build.ErrIO, dst, err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", build.ErrIO, dst, closeErr)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copy %s to %s: %w", build.ErrIO, src, dst, err)
	}

	// An existing dst keeps its old mode on open.
	if err = out.Chmod(perm); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", build.ErrIO, dst, err)
	}

	return nil
}

// MoveFile renames src to dst, falling back to copy and remove across devices.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("%w: move %s to %s: %w", build.ErrIO, src, dst, err)
	}

	if err = CopyFile(src, dst); err != nil {
		return err
	}

	if err = os.Remove(src); err != nil {
		return fmt.Errorf("%w: remove %s: %w", build.ErrIO, src, err)
	}

	return nil
}

// Exists reports whether path exists without following a trailing symlink.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
