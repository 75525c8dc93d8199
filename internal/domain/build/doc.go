// Package build defines the data model shared by the staging pipeline:
// the descriptor-backed BuildConfig, the produced Artifact, copy and pipeline
// options, stage names and the error taxonomy every stage reports through.
package build
