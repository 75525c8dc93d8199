package packager

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/opencontainers/go-digest"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/service/common"
)

// positionalArgs is appended to configured commands so paths are never spliced into scripts.
const positionalArgs = ` "$@"`

// Options contains inputs for a package builder.
type Options struct {
	// SourceRoot is the source tree; the output directory and test entry are resolved against it.
	SourceRoot string
	// StagingDir is the working directory of every command.
	StagingDir string
	// Settings holds the command lines and file conventions.
	Settings *config.Config
	// Sink receives command output and artifact events.
	Sink logger.Sink
}

// Builder runs the packaging, install and test commands of one pipeline run.
type Builder struct {
	opts  Options
	sink  logger.Sink
	shell *common.Shell
}

// NewBuilder creates a builder. A nil sink disables reporting.
func NewBuilder(opts Options) *Builder {
	sink := logger.OrNop(opts.Sink)

	return &Builder{
		opts: opts,
		sink: sink,
		shell: &common.Shell{
			Path: opts.Settings.Shell,
			Sink: sink,
		},
	}
}

// Package runs the packaging command and relocates its artifact into the output directory.
func (b *Builder) Package(ctx context.Context, cfg build.BuildConfig) (*build.Artifact, error) {
	settings := b.opts.Settings

	if err := b.shell.Run(ctx, b.opts.StagingDir, settings.PackCommand); err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}

	filename := build.ArtifactFilename(cfg.Name(), cfg.Version(), settings.ArtifactExtension)

	staged := filepath.Join(b.opts.StagingDir, filename)
	if !common.Exists(staged) {
		return nil, fmt.Errorf("%w: %s", build.ErrArtifactMissing, staged)
	}

	outputDir := filepath.Join(b.opts.SourceRoot, settings.OutputDir)
	if err := os.MkdirAll(outputDir, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", build.ErrIO, outputDir, err)
	}

	artifact := &build.Artifact{
		Name:      cfg.Name(),
		Version:   cfg.Version(),
		Path:      filepath.Join(outputDir, filename),
		AliasPath: filepath.Join(outputDir, build.AliasFilename(cfg.Name(), settings.ArtifactExtension)),
	}

	if err := common.MoveFile(staged, artifact.Path); err != nil {
		return nil, err
	}

	d, err := common.FileDigest(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", build.ErrIO, err)
	}

	artifact.Digest = d.String()

	if err = publishAlias(artifact.Path, artifact.AliasPath, d); err != nil {
		return nil, err
	}

	b.sink.Log(ctx, "Artifact created", "path", artifact.Path, "alias", artifact.AliasPath, "digest", artifact.Digest)

	return artifact, nil
}

// Install installs the artifact locally or globally.
// Global installs go through the escalation helper when the host has one.
func (b *Builder) Install(ctx context.Context, artifact *build.Artifact, global bool) error {
	settings := b.opts.Settings

	script := settings.InstallCommand
	if global {
		script = settings.GlobalInstallCommand
		if settings.EscalationHelper != "" && common.Exists(settings.EscalationHelper) {
			script = settings.EscalationHelper + " " + script
		}
	}

	b.sink.Log(ctx, "Installing artifact", "path", artifact.Path, "global", global)

	if err := b.shell.Run(ctx, b.opts.StagingDir, script+positionalArgs, artifact.Path); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	return nil
}

// Test executes the test entry point of the source tree.
// A missing entry point is reported and is not an error.
func (b *Builder) Test(ctx context.Context) error {
	entry := filepath.Join(b.opts.SourceRoot, b.opts.Settings.TestEntry)
	if !common.Exists(entry) {
		b.sink.Log(ctx, "Test file not found", "path", entry)
		return nil
	}

	b.sink.Log(ctx, "Running tests", "path", entry)

	if err := b.shell.Run(ctx, b.opts.StagingDir, positionalArgs, entry); err != nil {
		return fmt.Errorf("test: %w", err)
	}

	return nil
}

// publishAlias replaces aliasPath with a copy of artifactPath verified against d.
func publishAlias(artifactPath, aliasPath string, d digest.Digest) error {
	data, err := os.ReadFile(filepath.Clean(artifactPath))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", build.ErrIO, artifactPath, err)
	}

	checksum, err := hex.DecodeString(d.Encoded())
	if err != nil {
		return fmt.Errorf("%w: decode digest %s: %w", build.ErrIO, d, err)
	}

	// Apply renames the current target aside, so it has to exist first.
	if !common.Exists(aliasPath) {
		f, createErr := os.Create(filepath.Clean(aliasPath))
		if createErr != nil {
			return fmt.Errorf("%w: create %s: %w", build.ErrIO, aliasPath, createErr)
		}

		_ = f.Close()
	}

	err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: aliasPath,
		TargetMode: config.DefaultFilePermissions,
		Checksum:   checksum,
		Hash:       common.DefaultChecksumFunction,
	})
	if err != nil {
		return fmt.Errorf("%w: replace %s: %w", build.ErrIO, aliasPath, err)
	}

	oldPath := filepath.Join(filepath.Dir(aliasPath), "."+filepath.Base(aliasPath)+".old")
	if common.Exists(oldPath) {
		_ = os.Remove(oldPath)
	}

	return nil
}
