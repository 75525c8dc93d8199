package logger

import "context"

// Sink receives progress events from the staging pipeline.
// A sink is a pure side channel: it must never influence control flow.
type Sink interface {
	Log(ctx context.Context, message string, kvs ...any)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, message string, kvs ...any)

// Log calls f.
func (f SinkFunc) Log(ctx context.Context, message string, kvs ...any) {
	f(ctx, message, kvs...)
}

// NopSink returns a sink that drops every event.
//
//nolint:ireturn // Returning the interface is the point of the constructor.
func NopSink() Sink {
	return SinkFunc(func(context.Context, string, ...any) {})
}

// ZapSink returns a sink that writes events at the info level through the context logger.
//
//nolint:ireturn // Returning the interface is the point of the constructor.
func ZapSink() Sink {
	return SinkFunc(InfoKV)
}

// OrNop returns s, or a no-op sink when s is nil.
//
//nolint:ireturn // Returning the interface is the point of the helper.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink()
	}

	return s
}
