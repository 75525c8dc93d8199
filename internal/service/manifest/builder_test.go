package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/logger"
	"github.com/oshokin/bauset/internal/repository/snapshot"
)

func newTree(t *testing.T, template string) (string, string) {
	t.Helper()

	source := t.TempDir()
	staging := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(source, "PROJECT.txt"), []byte("name=foo\nversion=1.0.0\n"), 0o644))

	if template != "" {
		require.NoError(t, os.MkdirAll(filepath.Join(source, "var"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(source, "var", "in.package.json"), []byte(template), 0o644))
	}

	return source, staging
}

// TestBuilder_Write renders the manifest and stores the snapshot.
func TestBuilder_Write(t *testing.T) {
	t.Parallel()

	source, staging := newTree(t, `{"name": "{{.name}}", "version": "{{.version}}"}`)
	b := NewBuilder(config.Default(), source, staging, logger.NopSink())
	b.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	cfg, err := b.LoadConfig()
	require.NoError(t, err)

	require.NoError(t, b.Write(context.Background(), cfg, snapshot.Provenance{RunID: "run"}))

	manifest, err := os.ReadFile(filepath.Join(staging, "package.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"name": "foo", "version": "1.0.0"}`, string(manifest))

	saved, err := snapshot.NewFileRepository(filepath.Join(staging, "PROJECT.json")).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, cfg, saved.Config)
	require.Equal(t, "run", saved.Provenance.RunID)
	require.True(t, saved.CreatedAt.Equal(b.now()))
}

// TestBuilder_Write_MissingTemplate reports a render error and still leaves the snapshot.
func TestBuilder_Write_MissingTemplate(t *testing.T) {
	t.Parallel()

	source, staging := newTree(t, "")
	b := NewBuilder(config.Default(), source, staging, nil)

	err := b.Write(context.Background(), build.BuildConfig{"name": "foo"}, snapshot.Provenance{})
	require.ErrorIs(t, err, build.ErrRender)
	require.FileExists(t, filepath.Join(staging, "PROJECT.json"))
}

// TestBuilder_Write_UnknownPlaceholder fails instead of emitting "<no value>".
func TestBuilder_Write_UnknownPlaceholder(t *testing.T) {
	t.Parallel()

	source, staging := newTree(t, `{"license": "{{.license}}"}`)
	b := NewBuilder(config.Default(), source, staging, nil)

	err := b.Write(context.Background(), build.BuildConfig{"name": "foo"}, snapshot.Provenance{})
	require.ErrorIs(t, err, build.ErrRender)
}

// TestBuilder_LoadConfig_Empty is a config error.
func TestBuilder_LoadConfig_Empty(t *testing.T) {
	t.Parallel()

	source, staging := newTree(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(source, "PROJECT.txt"), nil, 0o644))

	_, err := NewBuilder(config.Default(), source, staging, nil).LoadConfig()
	require.ErrorIs(t, err, build.ErrConfig)
}

// TestRender_IndexForDashedKeys covers keys that are not Go identifiers.
func TestRender_IndexForDashedKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")

	require.NoError(t, os.WriteFile(in, []byte(`{{index . "main-file"}}`), 0o644))
	require.NoError(t, Render(build.BuildConfig{"main-file": "lib/index.js"}, in, out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "lib/index.js", string(got))
}
