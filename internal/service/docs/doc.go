// Package docs renders the Markdown documentation of a source tree to static HTML.
package docs
