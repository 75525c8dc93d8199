package build

import (
	"fmt"
	"maps"

	"github.com/oshokin/bauset/internal/logger"
)

const (
	// NameKey is the descriptor key holding the package name.
	NameKey = "name"
	// VersionKey is the descriptor key holding the package version.
	VersionKey = "version"
	// LatestAlias replaces the version in the stable artifact file name.
	LatestAlias = "latest"
)

// BuildConfig is the key/value mapping loaded from the source-tree descriptor.
type BuildConfig map[string]string

// Name returns the package name.
func (c BuildConfig) Name() string {
	return c[NameKey]
}

// Version returns the package version.
func (c BuildConfig) Version() string {
	return c[VersionKey]
}

// Clone returns a copy that can be augmented without touching the original.
func (c BuildConfig) Clone() BuildConfig {
	return maps.Clone(c)
}

// Artifact is a package file produced by the packaging tool.
type Artifact struct {
	// Name is the package name taken from the descriptor.
	Name string
	// Version is the package version taken from the descriptor.
	Version string
	// Path is the absolute location of the versioned artifact file.
	Path string
	// AliasPath is the location of the version-independent copy.
	AliasPath string
	// Digest is the content digest, "sha512:<hex>".
	Digest string
}

// ArtifactFilename returns "<name>-<version>.<ext>".
func ArtifactFilename(name, version, ext string) string {
	return fmt.Sprintf("%s-%s.%s", name, version, ext)
}

// AliasFilename returns "<name>-latest.<ext>".
func AliasFilename(name, ext string) string {
	return ArtifactFilename(name, LatestAlias, ext)
}

// CopyOptions is the policy applied by a recursive copy.
// It is passed unchanged through every recursive call.
type CopyOptions struct {
	// Overwrite replaces existing destination entries when true.
	Overwrite bool
	// Recursive descends into subdirectories when true.
	Recursive bool
	// Sink receives one event per copy decision; nil disables reporting.
	Sink logger.Sink
}

// StagingRequest describes one asset-copy pass from a source tree into the staging directory.
type StagingRequest struct {
	SourceRoot string
	DestRoot   string
	// Entries are top-level names relative to SourceRoot.
	Entries []string
	Options CopyOptions
}

// PipelineOptions are caller-controlled switches for a single run.
type PipelineOptions struct {
	// Install installs the produced artifact.
	Install bool
	// Global selects a global install. Only meaningful with Install.
	Global bool
	// Test runs the test entry point after install. Only meaningful with Install.
	Test bool
	// Recursive lets the asset copy descend into subdirectories.
	Recursive bool
	// Docs runs the best-effort documentation step after a successful run.
	Docs bool
	// Sink receives the stage trace and every copy decision.
	Sink logger.Sink
}

// Actor identifies who produced a build.
type Actor struct {
	// Hostname is the machine name where the build ran.
	Hostname string
	// Username is the system user who ran the build.
	Username string
}

// StageName identifies a pipeline stage.
type StageName string

// Pipeline stages in execution order.
const (
	StagePrepare  StageName = "prepare"
	StageManifest StageName = "manifest"
	StageAssets   StageName = "assets"
	StagePackage  StageName = "package"
	StageInstall  StageName = "install"
	StageTest     StageName = "test"
)
