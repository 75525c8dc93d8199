package packager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
	"github.com/oshokin/bauset/internal/service/common"
)

type messageSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *messageSink) Log(_ context.Context, message string, _ ...any) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
}

func (s *messageSink) contains(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m == message {
			return true
		}
	}

	return false
}

func newBuilder(t *testing.T, packCommand string, sink *messageSink) (*Builder, string, string) {
	t.Helper()

	source := t.TempDir()
	staging := t.TempDir()

	settings := config.Default()
	settings.PackCommand = packCommand
	settings.InstallCommand = `printf '%s\n' "local" >> installs.log; printf '%s\n'`
	settings.GlobalInstallCommand = `printf '%s\n' "global" >> installs.log; printf '%s\n'`
	settings.EscalationHelper = filepath.Join(source, "no-such-helper")

	b := NewBuilder(Options{
		SourceRoot: source,
		StagingDir: staging,
		Settings:   settings,
		Sink:       sink,
	})

	return b, source, staging
}

func fooConfig(version string) build.BuildConfig {
	return build.BuildConfig{build.NameKey: "foo", build.VersionKey: version}
}

// TestBuilder_Package moves the artifact and publishes an identical alias.
func TestBuilder_Package(t *testing.T) {
	t.Parallel()

	b, source, staging := newBuilder(t, `printf 'payload' > foo-1.0.0.tgz`, nil)

	artifact, err := b.Package(context.Background(), fooConfig("1.0.0"))
	require.NoError(t, err)

	require.Equal(t, filepath.Join(source, "pkg", "foo-1.0.0.tgz"), artifact.Path)
	require.Equal(t, filepath.Join(source, "pkg", "foo-latest.tgz"), artifact.AliasPath)
	require.NoFileExists(t, filepath.Join(staging, "foo-1.0.0.tgz"))

	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	alias, err := os.ReadFile(artifact.AliasPath)
	require.NoError(t, err)
	require.Equal(t, data, alias)
	require.True(t, strings.HasPrefix(artifact.Digest, "sha512:"))
}

// TestBuilder_Package_ReplacesAlias keeps older artifacts and points the alias at the newest one.
func TestBuilder_Package_ReplacesAlias(t *testing.T) {
	t.Parallel()

	b, source, _ := newBuilder(t, `. ./PROJECT.txt && printf '%s' "$version" > "foo-$version.tgz"`, nil)

	for _, version := range []string{"1.0.0", "1.1.0"} {
		require.NoError(t, os.WriteFile(filepath.Join(b.opts.StagingDir, "PROJECT.txt"), []byte("version="+version+"\n"), 0o644))

		_, err := b.Package(context.Background(), fooConfig(version))
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(filepath.Join(source, "pkg"))
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	require.ElementsMatch(t, []string{"foo-1.0.0.tgz", "foo-1.1.0.tgz", "foo-latest.tgz"}, names)

	alias, err := os.ReadFile(filepath.Join(source, "pkg", "foo-latest.tgz"))
	require.NoError(t, err)
	require.Equal(t, "1.1.0", string(alias))
}

// TestBuilder_Package_ArtifactMissing reports a tool that exits 0 without output.
func TestBuilder_Package_ArtifactMissing(t *testing.T) {
	t.Parallel()

	b, source, _ := newBuilder(t, "true", nil)

	_, err := b.Package(context.Background(), fooConfig("1.0.0"))
	require.ErrorIs(t, err, build.ErrArtifactMissing)
	require.NoDirExists(t, filepath.Join(source, "pkg"))
}

// TestBuilder_Package_CommandFails carries the exit code and forwards output.
func TestBuilder_Package_CommandFails(t *testing.T) {
	t.Parallel()

	sink := &messageSink{}
	b, _, _ := newBuilder(t, "echo boom >&2; exit 3", sink)

	_, err := b.Package(context.Background(), fooConfig("1.0.0"))
	require.ErrorIs(t, err, build.ErrSubprocess)

	var cmdErr *common.CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, 3, cmdErr.ExitCode)
	require.True(t, sink.contains("Command output"))
}

// TestBuilder_Install passes the artifact path as an argument.
func TestBuilder_Install(t *testing.T) {
	t.Parallel()

	b, _, staging := newBuilder(t, "true", nil)
	artifact := &build.Artifact{Path: "/tmp/with space/foo-1.0.0.tgz"}

	require.NoError(t, b.Install(context.Background(), artifact, false))
	require.NoError(t, b.Install(context.Background(), artifact, true))

	log, err := os.ReadFile(filepath.Join(staging, "installs.log"))
	require.NoError(t, err)
	require.Equal(t, []string{"local", "global"}, strings.Fields(string(log)))
}

// TestBuilder_Test_MissingEntry succeeds with a notice.
func TestBuilder_Test_MissingEntry(t *testing.T) {
	t.Parallel()

	sink := &messageSink{}
	b, _, _ := newBuilder(t, "true", sink)

	require.NoError(t, b.Test(context.Background()))
	require.True(t, sink.contains("Test file not found"))
}

// TestBuilder_Test runs the entry point inside the staging directory.
func TestBuilder_Test(t *testing.T) {
	t.Parallel()

	b, source, staging := newBuilder(t, "true", nil)

	entry := filepath.Join(source, "test", "test.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
	require.NoError(t, os.WriteFile(entry, []byte("#!/bin/sh\ntouch tested\n"), 0o755))

	require.NoError(t, b.Test(context.Background()))
	require.FileExists(t, filepath.Join(staging, "tested"))
}

// TestBuilder_Test_Fails propagates a non-zero exit.
func TestBuilder_Test_Fails(t *testing.T) {
	t.Parallel()

	b, source, _ := newBuilder(t, "true", nil)

	entry := filepath.Join(source, "test", "test.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
	require.NoError(t, os.WriteFile(entry, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	require.ErrorIs(t, b.Test(context.Background()), build.ErrSubprocess)
}
