// Package descriptor loads the key/value descriptor (PROJECT.txt) of a source
// tree into a build.BuildConfig.
package descriptor
