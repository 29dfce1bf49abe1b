package logutil

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// SlogLogger implements LoggerInterface over log/slog, emitting
// structured JSON records. It is the only backing implementation; the
// teacher's console/status-display variants have no home here since
// reviewrouter has no interactive CLI surface.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

var _ LoggerInterface = (*SlogLogger)(nil)

// New creates a SlogLogger writing JSON records to w at the given level.
// A nil w defaults to os.Stderr.
func New(w io.Writer, level slog.Level) *SlogLogger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &SlogLogger{logger: slog.New(handler), ctx: context.Background()}
}

// WithContext returns a logger whose context-less methods pull the
// correlation ID from ctx.
func (l *SlogLogger) WithContext(ctx context.Context) LoggerInterface {
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

func (l *SlogLogger) withCorrelationID(ctx context.Context, args []any) []any {
	if id := GetCorrelationID(ctx); id != "" {
		return append(args, "correlation_id", id)
	}
	return args
}

func (l *SlogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, l.withCorrelationID(ctx, args)...)
}

func (l *SlogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, l.withCorrelationID(ctx, args)...)
}

func (l *SlogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, l.withCorrelationID(ctx, args)...)
}

func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, l.withCorrelationID(ctx, args)...)
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.DebugContext(l.ctx, msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.InfoContext(l.ctx, msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.WarnContext(l.ctx, msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.ErrorContext(l.ctx, msg, args...) }

// ParseLevel converts a config-file level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &UnknownLevelError{Level: level}
	}
}

// UnknownLevelError reports an unrecognized log level string.
type UnknownLevelError struct {
	Level string
}

func (e *UnknownLevelError) Error() string {
	return "logutil: unknown log level: " + e.Level
}
