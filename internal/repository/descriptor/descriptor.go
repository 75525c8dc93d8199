package descriptor

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/oshokin/bauset/internal/domain/build"
)

var (
	// errEmptyDescriptor is returned when the descriptor defines no keys.
	errEmptyDescriptor = errors.New("descriptor defines no keys")
	// errMissingKey is returned when the descriptor lacks a key needed to name the artifact.
	errMissingKey = errors.New("descriptor key is missing")
)

// Load parses a key=value descriptor. Blank lines, "#" comments, "export"
// prefixes and quoted values are accepted. Every failure wraps build.ErrConfig.
func Load(path string) (build.BuildConfig, error) {
	values, err := godotenv.Read(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read descriptor %s: %w", build.ErrConfig, path, err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", build.ErrConfig, path, errEmptyDescriptor)
	}

	return build.BuildConfig(values), nil
}

// RequireArtifactKeys checks that cfg can name an artifact.
func RequireArtifactKeys(cfg build.BuildConfig) error {
	for _, key := range []string{build.NameKey, build.VersionKey} {
		if cfg[key] == "" {
			return fmt.Errorf("%w: %q: %w", build.ErrConfig, key, errMissingKey)
		}
	}

	return nil
}
