// Package logutil provides the structured, correlation-ID-aware logging
// used by every component of the router: the agents, the cache writer,
// and cmd/reviewrouter.
package logutil

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is a type for context keys to avoid collisions with other
// packages storing values on the same context.
type ContextKey string

// CorrelationIDKey is the context key under which the run's correlation
// ID is stored.
const CorrelationIDKey ContextKey = "correlation_id"

// WithCorrelationID attaches a correlation ID to ctx. An existing ID is
// preserved unless a non-empty id is supplied, in which case it replaces
// it. With no id supplied and none present, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id ...string) context.Context {
	if existing := GetCorrelationID(ctx); existing != "" {
		if len(id) == 0 || id[0] == "" {
			return ctx
		}
	}
	if len(id) > 0 && id[0] != "" {
		return context.WithValue(ctx, CorrelationIDKey, id[0])
	}
	return context.WithValue(ctx, CorrelationIDKey, uuid.New().String())
}

// GetCorrelationID retrieves the correlation ID from ctx, or "" if absent.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, ok := ctx.Value(CorrelationIDKey).(string)
	if !ok {
		return ""
	}
	return id
}

// LoggerInterface is the logging contract every component depends on,
// so the backing implementation (slog today) can be swapped without
// touching call sites.
type LoggerInterface interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// WithContext returns a logger whose *Context-less methods read the
	// correlation ID off ctx automatically.
	WithContext(ctx context.Context) LoggerInterface
}
