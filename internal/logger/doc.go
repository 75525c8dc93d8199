// Package logger wraps zap for the bauset CLI.
//
// Services take the logger from their context (FromContext), falling back to
// a global console logger on stderr. Staging components report progress
// through a Sink instead of logging directly, so callers decide where the
// events go.
package logger
