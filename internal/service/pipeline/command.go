package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/metrics"
	"github.com/oshokin/bauset/internal/service/watcher"
)

// Options contains inputs for the pipeline entry points.
type Options struct {
	// ConfigPath is an optional settings file that overrides the lookup order.
	ConfigPath string
	// SourceRoot is the source tree; empty means the current directory.
	SourceRoot string
	// DestRoot is the staging directory; empty means the configured one inside SourceRoot.
	DestRoot string
	// Install installs the produced artifact.
	Install bool
	// Global installs the artifact globally.
	Global bool
	// Test runs the test entry point after install.
	Test bool
	// Recursive overrides the configured asset-copy recursion when not nil.
	Recursive *bool
	// Docs renders the Markdown documentation after a successful run.
	Docs bool
	// Verbose forces debug logging.
	Verbose bool
	// Quiet hides progress events, leaving warnings and errors.
	Quiet bool
	// MetricsFile receives the run metrics in the Prometheus text format.
	MetricsFile string
}

// errSettingsExist is returned by Init when it would overwrite settings.
var errSettingsExist = errors.New("settings file already exists")

// runner is a resolved pipeline invocation.
type runner struct {
	sourceRoot string
	settings   *config.Config
	opts       *Options
	recorder   *metrics.PrometheusRecorder
	controller *Controller
}

// Run stages and packages the source tree once.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "bauset")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	artifact, err := r.stage(ctx)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	logger.InfoKV(ctx, "Package created", "artifact", artifact.Path, "alias", artifact.AliasPath)

	return nil
}

// Watch runs the pipeline, then runs it again after every change of the source tree
// until ctx is canceled. Failed runs are logged and watching continues.
func Watch(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bauset-watch")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context) {
		artifact, stageErr := r.stage(ctx)
		if stageErr != nil {
			logger.ErrorKV(ctx, "Pipeline failed", "error", stageErr)
			return
		}

		logger.InfoKV(ctx, "Package created", "artifact", artifact.Path)
	}

	// Exclude everything the pipeline itself writes into the tree.
	exclude := []string{
		filepath.Join(r.sourceRoot, r.settings.StagingDir),
		filepath.Join(r.sourceRoot, r.settings.OutputDir),
		filepath.Join(r.sourceRoot, r.settings.DocsDir),
	}
	if opts.DestRoot != "" {
		exclude = append(exclude, opts.DestRoot)
	}

	w, err := watcher.New(watcher.Options{
		Root:     r.sourceRoot,
		Exclude:  exclude,
		Ignore:   metricsFileFilter(opts.MetricsFile),
		OnChange: rebuild,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	defer func() {
		_ = w.Close()
	}()

	rebuild(ctx)

	logger.InfoKV(ctx, "Watching for changes", "source", r.sourceRoot)

	return w.Run(ctx)
}

// Init writes the default settings into the source tree and returns the file path.
func Init(ctx context.Context, sourceRoot string, force bool) (string, error) {
	if sourceRoot == "" {
		sourceRoot = "."
	}

	path := filepath.Join(sourceRoot, config.DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s: %w", path, errSettingsExist)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Settings written", "path", path)

	return path, nil
}

func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	// Default to the current directory.
	sourceRoot := opts.SourceRoot
	if sourceRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}

		sourceRoot = wd
	}

	sourceRoot, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	// Load settings: explicit file, source tree, user config, defaults.
	settings, settingsPath, err := config.Resolve(opts.ConfigPath, sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	level, _ := logger.ParseLogLevel(settings.LogLevel)
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	logger.SetLevel(level)

	logger.DebugKV(ctx, "Settings resolved", "path", settingsPath, "source", sourceRoot)

	r := &runner{
		sourceRoot: sourceRoot,
		settings:   settings,
		opts:       opts,
	}

	var ctrlOpts []Option

	if opts.MetricsFile != "" {
		r.recorder = metrics.NewPrometheusRecorder(nil)
		ctrlOpts = append(ctrlOpts, WithRecorder(r.recorder))
	}

	r.controller = NewController(settings, ctrlOpts...)

	return r, nil
}

func (r *runner) stage(ctx context.Context) (*build.Artifact, error) {
	recursive := r.settings.Recursive
	if r.opts.Recursive != nil {
		recursive = *r.opts.Recursive
	}

	sink := logger.ZapSink()
	if r.opts.Quiet {
		sink = logger.SinkFunc(func(ctx context.Context, message string, kvs ...any) {
			logger.InfoKV(logger.WithMinLevel(ctx, zapcore.WarnLevel), message, kvs...)
		})
	}

	artifact, err := r.controller.Stage(ctx, r.sourceRoot, r.opts.DestRoot, build.PipelineOptions{
		Install:   r.opts.Install,
		Global:    r.opts.Global,
		Test:      r.opts.Test,
		Recursive: recursive,
		Docs:      r.opts.Docs,
		Sink:      sink,
	})

	if r.recorder != nil {
		if writeErr := r.recorder.WriteTextfile(r.opts.MetricsFile); writeErr != nil {
			logger.WarnKV(ctx, "Failed to write metrics", "path", r.opts.MetricsFile, "error", writeErr)
		}
	}

	return artifact, err
}

// metricsFileFilter matches the metrics file and the temporary files it is written through.
func metricsFileFilter(metricsFile string) func(path string) bool {
	if metricsFile == "" {
		return nil
	}

	abs, err := filepath.Abs(metricsFile)
	if err != nil {
		return nil
	}

	dir, base := filepath.Split(abs)

	return func(path string) bool {
		return filepath.Dir(path) == filepath.Clean(dir) && strings.HasPrefix(filepath.Base(path), base)
	}
}
