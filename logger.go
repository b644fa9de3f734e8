package vectable

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vectable-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return newLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return newLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return newLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

func newLogger(h slog.Handler) *Logger {
	return &Logger{Logger: slog.New(h)}
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(table string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", table),
	}
}

// WithRequestID adds a request_id field to the logger.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("request_id", id),
	}
}

// LogAdd logs an append commit.
func (l *Logger) LogAdd(ctx context.Context, table string, rows int, version uint64, attempts int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"table", table,
			"rows", rows,
			"attempts", attempts,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add committed",
			"table", table,
			"rows", rows,
			"version", version,
			"attempts", attempts,
		)
	}
}

// LogCommitRetry logs a lost publish race before the next attempt.
func (l *Logger) LogCommitRetry(ctx context.Context, table string, attempt int, backoff time.Duration) {
	l.DebugContext(ctx, "manifest version conflict, retrying",
		"table", table,
		"attempt", attempt,
		"backoff", backoff,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, table string, k, resultsFound int, version uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"table", table,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"table", table,
			"k", k,
			"results", resultsFound,
			"version", version,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, table string, deleted int, version uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"table", table,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "delete committed",
			"table", table,
			"deleted", deleted,
			"version", version,
		)
	}
}

// LogCreate logs a table creation.
func (l *Logger) LogCreate(ctx context.Context, table string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create table failed",
			"table", table,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table created",
			"table", table,
		)
	}
}

// LogOrphan logs a fragment that was written but never referenced.
func (l *Logger) LogOrphan(ctx context.Context, table, path string) {
	l.WarnContext(ctx, "fragment left unreferenced",
		"table", table,
		"path", path,
	)
}
