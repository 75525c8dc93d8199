package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bauset/internal/config"
)

// fakePack stands in for "npm pack": it names the archive after the staged descriptor.
const fakePack = `. ./PROJECT.txt && tar -czf "$name-$version.tgz" package.json`

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newPackageTree creates a minimal npm package source tree with settings that avoid the network.
func newPackageTree(t *testing.T, packCommand string) string {
	t.Helper()

	source := t.TempDir()

	writeFile(t, filepath.Join(source, "PROJECT.txt"), "# package descriptor\nname=foo\nversion=1.0.0\ndescription=\"staging test\"\n")
	writeFile(t, filepath.Join(source, "var", "in.package.json"),
		`{"name": "{{.name}}", "version": "{{.version}}", "description": "{{.description}}", "main": "lib/index.js"}`)
	writeFile(t, filepath.Join(source, "README.md"), "# foo\n\nStaging test package.\n")
	writeFile(t, filepath.Join(source, "lib", "index.js"), "module.exports = 42;\n")

	settings := config.Default()
	settings.PackCommand = packCommand

	require.NoError(t, config.Save(filepath.Join(source, config.DefaultConfigFilename), settings))

	return source
}
