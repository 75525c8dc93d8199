package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/repository/descriptor"
	"github.com/oshokin/bauset/internal/repository/snapshot"
)

// Builder loads the descriptor of a source tree and writes the manifest files into a staging directory.
type Builder struct {
	settings   *config.Config
	sourceRoot string
	stagingDir string
	sink       logger.Sink
	now        func() time.Time
}

// NewBuilder creates a builder for one source tree and staging directory.
func NewBuilder(settings *config.Config, sourceRoot, stagingDir string, sink logger.Sink) *Builder {
	return &Builder{
		settings:   settings,
		sourceRoot: sourceRoot,
		stagingDir: stagingDir,
		sink:       logger.OrNop(sink),
		now:        time.Now,
	}
}

// LoadConfig reads the descriptor. An empty or missing descriptor is a config error.
func (b *Builder) LoadConfig() (build.BuildConfig, error) {
	return descriptor.Load(filepath.Join(b.sourceRoot, b.settings.DescriptorFile))
}

// Write stores the metadata snapshot, then renders the manifest template.
// The rendered manifest must exist afterwards, whatever the renderer reported.
func (b *Builder) Write(ctx context.Context, cfg build.BuildConfig, provenance snapshot.Provenance) error {
	repo := snapshot.NewFileRepository(filepath.Join(b.stagingDir, b.settings.SnapshotFile))

	err := repo.Save(ctx, &snapshot.Snapshot{
		Config:     cfg.Clone(),
		CreatedAt:  b.now(),
		Provenance: provenance,
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	b.sink.Log(ctx, "Snapshot written", "path", repo.Path())

	templatePath := filepath.Join(b.sourceRoot, b.settings.TemplateFile)
	outputPath := filepath.Join(b.stagingDir, b.settings.ManifestFile)

	renderErr := Render(cfg, templatePath, outputPath)
	if _, statErr := os.Stat(outputPath); statErr != nil {
		if renderErr != nil {
			return fmt.Errorf("%w: create manifest %s: %w", build.ErrRender, outputPath, renderErr)
		}

		return fmt.Errorf("%w: manifest %s was not created: %w", build.ErrRender, outputPath, statErr)
	}

	if renderErr != nil {
		return fmt.Errorf("%w: %w", build.ErrRender, renderErr)
	}

	b.sink.Log(ctx, "Manifest rendered", "template", templatePath, "path", outputPath)

	return nil
}
