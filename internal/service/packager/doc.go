// Package packager turns a staged tree into a versioned artifact.
//
// It runs the packaging tool inside the staging directory, moves the produced
// artifact into the persistent output directory, publishes a version-independent
// "latest" copy next to it, and optionally installs and tests the artifact.
package packager
