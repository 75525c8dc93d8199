package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, path containment and level parsing.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))
	require.NoError(t, Validate(Default()))

	// Missing pack command.
	cfg := Default()
	cfg.PackCommand = " "
	require.ErrorIs(t, Validate(cfg), errFieldRequired)

	// Asset escaping the source root.
	cfg = Default()
	cfg.Assets = append(cfg.Assets, "../secrets")
	require.ErrorIs(t, Validate(cfg), errPathNotRelative)

	// Bad level.
	cfg = Default()
	cfg.LogLevel = "loud"
	require.ErrorIs(t, Validate(cfg), errUnknownLogLevel)

	// Extension is normalized.
	cfg = Default()
	cfg.ArtifactExtension = ".zip"
	require.NoError(t, Validate(cfg))
	require.Equal(t, "zip", cfg.ArtifactExtension)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)

	settings := Default()
	settings.PackCommand = "make pack"
	settings.Assets = []string{"README.md", "lib"}
	settings.Recursive = false

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)
}

// TestLoad_PartialFileKeepsDefaults verifies that absent keys fall back to defaults.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte("pack_command: yarn pack\n"), DefaultFilePermissions))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "yarn pack", loaded.PackCommand)
	require.Equal(t, Default().Assets, loaded.Assets)
	require.True(t, loaded.Recursive)
}

// TestResolve_Precedence checks explicit path, source-root file and defaults.
func TestResolve_Precedence(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	// Explicit path that does not exist is an error.
	_, _, err := Resolve(filepath.Join(root, "missing.yaml"), root)
	require.Error(t, err)

	// Source-root file wins over defaults.
	local := filepath.Join(root, DefaultConfigFilename)
	require.NoError(t, os.WriteFile(local, []byte("output_dir: artifacts\n"), DefaultFilePermissions))

	cfg, path, err := Resolve("", root)
	require.NoError(t, err)
	require.Equal(t, local, path)
	require.Equal(t, "artifacts", cfg.OutputDir)
}

// TestResolve_UserConfigDir verifies the XDG lookup used when the source root has no settings.
func TestResolve_UserConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	xdg.Reload()

	t.Cleanup(xdg.Reload)

	userDir := filepath.Join(home, appName)
	require.NoError(t, os.MkdirAll(userDir, DefaultDirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, DefaultConfigFilename), []byte("pack_command: pnpm pack\n"), DefaultFilePermissions))

	cfg, path, err := Resolve("", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(userDir, DefaultConfigFilename), path)
	require.Equal(t, "pnpm pack", cfg.PackCommand)
}
