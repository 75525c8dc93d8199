package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/bauset/internal/logger"
)

// Config holds the packaging conventions of a source tree.
// Every path is relative to the source root unless stated otherwise.
type Config struct {
	// DescriptorFile is the key/value file describing the package.
	DescriptorFile string `yaml:"descriptor_file"`
	// TemplateFile is the manifest template rendered with descriptor values.
	TemplateFile string `yaml:"template_file"`
	// ManifestFile is the rendered manifest name inside the staging directory.
	ManifestFile string `yaml:"manifest_file"`
	// SnapshotFile is the metadata snapshot name inside the staging directory.
	SnapshotFile string `yaml:"snapshot_file"`
	// StagingDir is the default staging directory.
	StagingDir string `yaml:"staging_dir"`
	// OutputDir receives versioned artifacts and the latest alias.
	OutputDir string `yaml:"output_dir"`
	// DocsDir receives generated HTML documentation.
	DocsDir string `yaml:"docs_dir"`
	// ArtifactExtension is the packaging tool's output extension, without the dot.
	ArtifactExtension string `yaml:"artifact_extension"`
	// Assets are the top-level entries copied into the staging directory.
	Assets []string `yaml:"assets"`
	// Recursive is the default asset-copy recursion policy.
	Recursive bool `yaml:"recursive"`
	// Shell runs every external command with "-c".
	Shell string `yaml:"shell"`
	// PackCommand produces the artifact inside the staging directory.
	PackCommand string `yaml:"pack_command"`
	// InstallCommand installs the artifact locally; the artifact path is appended.
	InstallCommand string `yaml:"install_command"`
	// GlobalInstallCommand installs the artifact globally; the artifact path is appended.
	GlobalInstallCommand string `yaml:"global_install_command"`
	// EscalationHelper prefixes global installs when it exists on the host. Absolute path.
	EscalationHelper string `yaml:"escalation_helper"`
	// TestEntry is executed after install when tests are requested.
	TestEntry string `yaml:"test_entry"`
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the source root and the user config dir.
	DefaultConfigFilename = "bauset.yaml"

	// DefaultFilePermissions is the permission for files written by bauset.
	DefaultFilePermissions = 0o644

	// DefaultDirPermissions is the permission for directories created by bauset.
	DefaultDirPermissions = 0o755

	// appName is the directory name under the XDG config home.
	appName = "bauset"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFieldRequired is returned when a mandatory setting is empty.
	errFieldRequired = errors.New("setting must be provided")
	// errPathNotRelative is returned when a source-tree path escapes the source root.
	errPathNotRelative = errors.New("path must be relative to the source root")
	// errUnknownLogLevel is returned for unparsable log levels.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns the conventions of an npm package tree.
func Default() *Config {
	return &Config{
		DescriptorFile:       "PROJECT.txt",
		TemplateFile:         filepath.Join("var", "in.package.json"),
		ManifestFile:         "package.json",
		SnapshotFile:         "PROJECT.json",
		StagingDir:           "dist",
		OutputDir:            "pkg",
		DocsDir:              "dox",
		ArtifactExtension:    "tgz",
		Assets:               []string{"PROJECT.txt", "README.md", "LICENSE", "lib", "bin", "test", "doc"},
		Recursive:            true,
		Shell:                "/bin/sh",
		PackCommand:          "npm pack",
		InstallCommand:       "npm install",
		GlobalInstallCommand: "npm install -g",
		EscalationHelper:     "/usr/bin/sudo",
		TestEntry:            filepath.Join("test", "test.js"),
		LogLevel:             "info",
	}
}

// Load reads settings from path on top of the defaults and validates them.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve picks the settings for a source tree.
// Lookup order: explicit path, <sourceRoot>/bauset.yaml, the user config
// directory, built-in defaults. The returned path is empty for defaults.
func Resolve(explicitPath, sourceRoot string) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := Load(explicitPath)
		return cfg, explicitPath, err
	}

	local := filepath.Join(sourceRoot, DefaultConfigFilename)
	if _, err := os.Stat(local); err == nil {
		cfg, err := Load(local)
		return cfg, local, err
	}

	if userPath, err := xdg.SearchConfigFile(filepath.Join(appName, DefaultConfigFilename)); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}

	return Default(), "", nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks mandatory fields and normalizes the artifact extension.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.ArtifactExtension = strings.TrimPrefix(strings.TrimSpace(cfg.ArtifactExtension), ".")

	required := map[string]string{
		"descriptor_file":        cfg.DescriptorFile,
		"template_file":          cfg.TemplateFile,
		"manifest_file":          cfg.ManifestFile,
		"snapshot_file":          cfg.SnapshotFile,
		"staging_dir":            cfg.StagingDir,
		"output_dir":             cfg.OutputDir,
		"artifact_extension":     cfg.ArtifactExtension,
		"shell":                  cfg.Shell,
		"pack_command":           cfg.PackCommand,
		"install_command":        cfg.InstallCommand,
		"global_install_command": cfg.GlobalInstallCommand,
		"test_entry":             cfg.TestEntry,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s: %w", name, errFieldRequired)
		}
	}

	relative := []string{cfg.DescriptorFile, cfg.TemplateFile, cfg.ManifestFile, cfg.SnapshotFile, cfg.OutputDir, cfg.TestEntry}
	relative = append(relative, cfg.Assets...)

	for _, p := range relative {
		if !filepath.IsLocal(p) {
			return fmt.Errorf("%q: %w", p, errPathNotRelative)
		}
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
	}

	return nil
}
