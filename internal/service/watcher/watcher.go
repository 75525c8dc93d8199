package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/bauset/internal/logger"
)

// DefaultDebounce is the quiet period after the last change before OnChange runs.
const DefaultDebounce = 500 * time.Millisecond

var errNoCallback = errors.New("change callback is not set")

// Options configures a watcher.
type Options struct {
	// Root is the directory watched recursively.
	Root string
	// Exclude lists directories whose contents never trigger a change.
	Exclude []string
	// Ignore filters out additional paths when set.
	Ignore func(path string) bool
	// Debounce is the quiet period; zero means DefaultDebounce.
	Debounce time.Duration
	// OnChange runs on the watcher goroutine, so changes made meanwhile are coalesced into one more call.
	OnChange func(ctx context.Context)
}

// Watcher watches a directory tree, skipping dot-entries and excluded directories.
type Watcher struct {
	opts    Options
	exclude []string
	fs      *fsnotify.Watcher
}

// New creates a watcher and registers every directory under the root.
func New(opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, errNoCallback
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Root, err)
	}

	opts.Root = root

	exclude := make([]string, 0, len(opts.Exclude))

	for _, dir := range opts.Exclude {
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return nil, fmt.Errorf("resolve %s: %w", dir, absErr)
		}

		exclude = append(exclude, abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	w := &Watcher{
		opts:    opts,
		exclude: exclude,
		fs:      fw,
	}

	if err = w.addRecursive(context.Background(), root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return w, nil
}

// Run dispatches debounced changes until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}

			if w.ignored(ev.Name) {
				continue
			}

			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ctx, ev.Name)
				}
			}

			logger.DebugKV(ctx, "File change detected", "path", ev.Name, "op", ev.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}

			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}

			logger.WarnKV(ctx, "Watcher error", "error", err)
		case <-fire:
			fire = nil

			w.opts.OnChange(ctx)
		}
	}
}

// Close releases the underlying notification handle.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) addRecursive(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // Unreadable entries are skipped.
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.opts.Root && w.ignored(path) {
			return filepath.SkipDir
		}

		if addErr := w.fs.Add(path); addErr != nil {
			logger.WarnKV(ctx, "Watch add failed", "dir", path, "error", addErr)
		}

		return nil
	})
}

// ignored reports whether path is a dot-entry, an editor backup or inside an excluded directory.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err == nil && rel != "." {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") {
				return true
			}
		}
	}

	if strings.HasSuffix(path, "~") {
		return true
	}

	for _, dir := range w.exclude {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	return w.opts.Ignore != nil && w.opts.Ignore(path)
}
