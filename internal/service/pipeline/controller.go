package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/metrics"
	"github.com/oshokin/bauset/internal/repository/descriptor"
	"github.com/oshokin/bauset/internal/repository/snapshot"
	"github.com/oshokin/bauset/internal/service/common"
	"github.com/oshokin/bauset/internal/service/docs"
	"github.com/oshokin/bauset/internal/service/manifest"
	"github.com/oshokin/bauset/internal/service/packager"
	"github.com/oshokin/bauset/internal/service/stager"
)

// errUnsafeStagingDir is returned when wiping the staging directory would destroy the source tree.
var errUnsafeStagingDir = errors.New("staging directory must not contain the source root")

// Option customizes a controller.
type Option func(*Controller)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Controller runs the staging pipeline with one set of settings.
type Controller struct {
	settings *config.Config
	recorder metrics.Recorder
}

// NewController creates a controller. Nil settings mean the defaults.
func NewController(settings *config.Config, opts ...Option) *Controller {
	if settings == nil {
		settings = config.Default()
	}

	c := &Controller{
		settings: settings,
		recorder: metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type stageDef struct {
	name build.StageName
	run  func(ctx context.Context) error
}

// run holds the state shared by the stages of one invocation.
type run struct {
	id         string
	sourceRoot string
	destRoot   string
	opts       build.PipelineOptions
	sink       logger.Sink
	cfg        build.BuildConfig
	manifest   *manifest.Builder
	packager   *packager.Builder
	artifact   *build.Artifact
}

// Stage stages sourceRoot into destRoot and packages it.
// An empty destRoot means the configured staging directory inside sourceRoot.
// The descriptor is validated before anything on disk is touched.
func (c *Controller) Stage(
	ctx context.Context,
	sourceRoot, destRoot string,
	opts build.PipelineOptions,
) (*build.Artifact, error) {
	started := time.Now()

	artifact, err := c.stage(ctx, sourceRoot, destRoot, opts)

	c.recorder.ObserveRunDuration(time.Since(started))
	c.recorder.IncRunOutcome(resultOf(err))

	return artifact, err
}

func (c *Controller) stage(
	ctx context.Context,
	sourceRoot, destRoot string,
	opts build.PipelineOptions,
) (*build.Artifact, error) {
	r, err := c.newRun(sourceRoot, destRoot, opts)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "run_id", r.id)

	lock, err := common.AcquireRunLock(ctx, r.sourceRoot)
	if err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release run lock", "error", releaseErr)
		}
	}()

	if r.cfg, err = r.manifest.LoadConfig(); err != nil {
		return nil, err
	}

	if err = descriptor.RequireArtifactKeys(r.cfg); err != nil {
		return nil, err
	}

	r.sink.Log(ctx, "Pipeline started",
		"name", r.cfg.Name(), "version", r.cfg.Version(), "source", r.sourceRoot, "dest", r.destRoot)

	for _, stage := range c.stages(r) {
		if err = c.runStage(ctx, r.sink, stage); err != nil {
			return nil, err
		}
	}

	if opts.Docs {
		c.generateDocs(ctx, r)
	}

	r.sink.Log(ctx, "Pipeline completed", "artifact", r.artifact.Path)

	return r.artifact, nil
}

func (c *Controller) newRun(sourceRoot, destRoot string, opts build.PipelineOptions) (*run, error) {
	source, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	if destRoot == "" {
		destRoot = filepath.Join(source, c.settings.StagingDir)
	}

	dest, err := filepath.Abs(destRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve staging directory: %w", err)
	}

	if dest == source || strings.HasPrefix(source, dest+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s: %w", build.ErrConfig, dest, errUnsafeStagingDir)
	}

	sink := logger.OrNop(opts.Sink)
	opts.Sink = sink

	return &run{
		id:         uuid.NewString(),
		sourceRoot: source,
		destRoot:   dest,
		opts:       opts,
		sink:       sink,
		manifest:   manifest.NewBuilder(c.settings, source, dest, sink),
		packager: packager.NewBuilder(packager.Options{
			SourceRoot: source,
			StagingDir: dest,
			Settings:   c.settings,
			Sink:       sink,
		}),
	}, nil
}

// stages lists the stages of a run in execution order.
func (c *Controller) stages(r *run) []stageDef {
	stages := []stageDef{
		{name: build.StagePrepare, run: func(context.Context) error {
			return prepareStagingDir(r.destRoot)
		}},
		{name: build.StageManifest, run: func(ctx context.Context) error {
			return r.manifest.Write(ctx, r.cfg, c.provenance(ctx, r))
		}},
		{name: build.StageAssets, run: func(ctx context.Context) error {
			return stager.Stage(ctx, build.StagingRequest{
				SourceRoot: r.sourceRoot,
				DestRoot:   r.destRoot,
				Entries:    c.settings.Assets,
				Options: build.CopyOptions{
					Overwrite: true,
					Recursive: r.opts.Recursive,
					Sink:      r.sink,
				},
			})
		}},
		{name: build.StagePackage, run: func(ctx context.Context) error {
			artifact, err := r.packager.Package(ctx, r.cfg)
			if err != nil {
				return err
			}

			r.artifact = artifact

			return nil
		}},
	}

	if !r.opts.Install {
		c.recorder.IncStageResult(string(build.StageInstall), metrics.ResultSkipped)
		c.recorder.IncStageResult(string(build.StageTest), metrics.ResultSkipped)

		return stages
	}

	stages = append(stages, stageDef{name: build.StageInstall, run: func(ctx context.Context) error {
		return r.packager.Install(ctx, r.artifact, r.opts.Global)
	}})

	if !r.opts.Test {
		c.recorder.IncStageResult(string(build.StageTest), metrics.ResultSkipped)

		return stages
	}

	return append(stages, stageDef{name: build.StageTest, run: r.packager.Test})
}

// runStage executes one stage and reports the transition.
func (c *Controller) runStage(ctx context.Context, sink logger.Sink, stage stageDef) error {
	name := string(stage.name)

	if err := ctx.Err(); err != nil {
		c.recorder.IncStageResult(name, metrics.ResultCanceled)
		return fmt.Errorf("%s stage: %w", name, err)
	}

	sink.Log(ctx, "Stage started", "stage", name)

	started := time.Now()
	err := stage.run(ctx)
	elapsed := time.Since(started)

	c.recorder.ObserveStageDuration(name, elapsed)
	c.recorder.IncStageResult(name, resultOf(err))

	if err != nil {
		sink.Log(ctx, "Stage failed", "stage", name, "error", err.Error())
		return fmt.Errorf("%s stage: %w", name, err)
	}

	sink.Log(ctx, "Stage completed", "stage", name, "duration", elapsed.String())

	return nil
}

// provenance collects who built the snapshot and from which revision.
// Detection failures only drop the corresponding fields.
func (c *Controller) provenance(ctx context.Context, r *run) snapshot.Provenance {
	p := snapshot.Provenance{RunID: r.id}

	if actor, err := common.DetectActor(); err != nil {
		logger.DebugKV(ctx, "Failed to detect actor", "error", err)
	} else {
		p.Hostname = actor.Hostname
		p.Username = actor.Username
	}

	if rev, err := common.DetectRevision(r.sourceRoot); err != nil {
		logger.DebugKV(ctx, "Failed to detect revision", "error", err)
	} else if rev != nil {
		p.GitCommit = rev.Commit
		p.GitBranch = rev.Branch
	}

	return p
}

// generateDocs renders the documentation; a failure is only reported.
func (c *Controller) generateDocs(ctx context.Context, r *run) {
	outputDir := filepath.Join(r.sourceRoot, c.settings.DocsDir)

	written, err := docs.NewGenerator(r.sink).Generate(ctx, r.sourceRoot, outputDir)
	if err != nil {
		logger.WarnKV(ctx, "Documentation step failed", "error", err)
		r.sink.Log(ctx, "Documentation step failed", "error", err.Error())

		return
	}

	r.sink.Log(ctx, "Documentation generated", "dir", outputDir, "pages", len(written))
}

// prepareStagingDir replaces dest with an empty directory.
func prepareStagingDir(dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("%w: remove %s: %w", build.ErrIO, dest, err)
	}

	if err := os.MkdirAll(dest, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("%w: create %s: %w", build.ErrIO, dest, err)
	}

	return nil
}

func resultOf(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
