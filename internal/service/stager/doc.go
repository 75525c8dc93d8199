// Package stager copies source-tree assets into a staging directory.
//
// Directories are rebuilt rather than merged when overwriting is enabled.
// Per-entry stat failures are reported and skipped; a failure while copying
// a single file aborts the whole copy.
package stager
