// Package pipeline sequences the staging stages of a source tree.
//
// A run prepares a fresh staging directory, writes the manifest, copies the
// assets, packages them, and optionally installs and tests the artifact. The
// stages execute in order and the first failure stops the run. Documentation
// generation runs afterwards and never fails a run.
package pipeline
