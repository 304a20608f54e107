package speakerid

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with speakerid-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithUsername adds a username field to the logger.
func (l *Logger) WithUsername(username string) *Logger {
	return &Logger{
		Logger: l.Logger.With("username", username),
	}
}

// LogEnroll logs an enrollment submission.
func (l *Logger) LogEnroll(ctx context.Context, username string, clipIndex int, complete bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "enrollment failed",
			"username", username,
			"clip_index", clipIndex,
			"error", err,
		)
	} else if complete {
		l.InfoContext(ctx, "enrollment complete",
			"username", username,
		)
	} else {
		l.DebugContext(ctx, "clip recorded",
			"username", username,
			"clip_index", clipIndex,
		)
	}
}

// LogIdentify logs an identification.
func (l *Logger) LogIdentify(ctx context.Context, prediction string, confidence float32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "identification failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "identification completed",
			"prediction", prediction,
			"confidence", confidence,
		)
	}
}

// LogDelete logs a user deletion.
func (l *Logger) LogDelete(ctx context.Context, username string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"username", username,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "user deleted",
			"username", username,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed",
			"name", name,
		)
	}
}
