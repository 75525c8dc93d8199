// Package watcher reports debounced changes of a source tree.
package watcher
