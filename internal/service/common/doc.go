// Package common holds helpers shared by several services.
//
// It runs shell commands with an explicit working directory and captured
// output, copies and moves files, fingerprints artifacts, guards a source
// tree with a run lock, and detects build provenance (actor and git revision).
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
