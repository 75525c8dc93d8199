// Package manifest materializes the package manifest inside the staging
// directory: it writes the metadata snapshot, renders the manifest template
// with descriptor values, and verifies that the rendered file exists.
package manifest
