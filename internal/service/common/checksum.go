//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"

	"github.com/opencontainers/go-digest"
)

const (
	// DefaultDigestAlgorithm fingerprints artifacts.
	DefaultDigestAlgorithm = digest.SHA512
	// DefaultChecksumFunction is the hash behind DefaultDigestAlgorithm, for APIs that take a crypto.Hash.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512
)

var errHashUnavailable = errors.New("hash function unavailable")

// FileDigest returns the digest of a file using DefaultDigestAlgorithm.
func FileDigest(path string) (digest.Digest, error) {
	if !DefaultDigestAlgorithm.Available() {
		return "", fmt.Errorf("digest calculation not possible: %w", errHashUnavailable)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	d, err := DefaultDigestAlgorithm.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("calculate digest: %w", err)
	}

	return d, nil
}

// GetFileChecksum returns the raw checksum bytes of a file.
func GetFileChecksum(path string) ([]byte, error) {
	d, err := FileDigest(path)
	if err != nil {
		return nil, err
	}

	return hex.DecodeString(d.Encoded())
}
