package stager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/service/common"
)

// Action is the decision taken for one copied entry.
type Action string

// Copy decisions reported through the sink.
const (
	ActionCopied  Action = "copied"
	ActionExists  Action = "exists"
	ActionIgnored Action = "ignored"
	ActionError   Action = "error"
)

// copyEventMessage is the sink message of every copy decision.
const copyEventMessage = "Copy"

// Stage copies every requested top-level entry from the source root into the destination root.
func Stage(ctx context.Context, req build.StagingRequest) error {
	for _, entry := range req.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		source := filepath.Join(req.SourceRoot, entry)
		dest := filepath.Join(req.DestRoot, entry)

		if err := Copy(ctx, source, dest, req.Options); err != nil {
			return fmt.Errorf("stage %s: %w", entry, err)
		}
	}

	return nil
}

// Copy copies source to dest following opts.
// A missing source is not an error.
func Copy(ctx context.Context, source, dest string, opts build.CopyOptions) error {
	sink := logger.OrNop(opts.Sink)

	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report(ctx, sink, ActionIgnored, source, dest)
			return nil
		}

		return fmt.Errorf("%w: stat %s: %w", build.ErrIO, source, err)
	}

	if !info.IsDir() {
		if err = common.CopyFile(source, dest); err != nil {
			return err
		}

		report(ctx, sink, ActionCopied, source, dest)

		return nil
	}

	return copyDir(ctx, sink, source, dest, opts)
}

func copyDir(ctx context.Context, sink logger.Sink, source, dest string, opts build.CopyOptions) error {
	if err := prepareDir(dest, opts.Overwrite); err != nil {
		return err
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("%w: list %s: %w", build.ErrIO, source, err)
	}

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = copyEntry(ctx, sink, filepath.Join(source, entry.Name()), filepath.Join(dest, entry.Name()), opts); err != nil {
			return err
		}
	}

	return nil
}

func copyEntry(ctx context.Context, sink logger.Sink, source, dest string, opts build.CopyOptions) error {
	if !opts.Overwrite && common.Exists(dest) {
		report(ctx, sink, ActionExists, source, dest)
		return nil
	}

	info, err := os.Stat(source)
	if err != nil {
		report(ctx, sink, ActionError, source, dest, "error", err)
		return nil
	}

	if !info.IsDir() {
		if err = common.CopyFile(source, dest); err != nil {
			return err
		}

		report(ctx, sink, ActionCopied, source, dest)

		return nil
	}

	if !opts.Recursive {
		report(ctx, sink, ActionIgnored, source, dest)
		return nil
	}

	return copyDir(ctx, sink, source, dest, opts)
}

// prepareDir makes dest an empty directory when overwriting, or ensures it exists otherwise.
// A non-directory at dest is always replaced.
func prepareDir(dest string, overwrite bool) error {
	info, err := os.Lstat(dest)

	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("%w: stat %s: %w", build.ErrIO, dest, err)
	case overwrite || !info.IsDir():
		if err = os.RemoveAll(dest); err != nil {
			return fmt.Errorf("%w: remove %s: %w", build.ErrIO, dest, err)
		}
	}

	if err = os.MkdirAll(dest, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("%w: create %s: %w", build.ErrIO, dest, err)
	}

	return nil
}

func report(ctx context.Context, sink logger.Sink, action Action, source, dest string, kvs ...any) {
	sink.Log(ctx, copyEventMessage, append([]any{"action", string(action), "source", source, "dest", dest}, kvs...)...)
}
