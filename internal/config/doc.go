// Package config defines the packaging conventions of a source tree and
// provides helpers to resolve, load, validate and save them in YAML format.
//
// Settings are optional: without a bauset.yaml the defaults describe an npm
// package staged into dist/ and published into pkg/.
package config
