package hnswkit

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific helpers and consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at info level is used.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithIndex tags every record with the index instance id.
func (l *Logger) WithIndex(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index_id", id),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// LogInsert logs a single insert.
func (l *Logger) LogInsert(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"id", id,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "insert completed", "id", id)
}

// LogBatchInsert logs a batch insert.
func (l *Logger) LogBatchInsert(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batch insert failed",
			"count", count,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "batch insert completed", "count", count)
}

// LogSearch logs a search.
func (l *Logger) LogSearch(ctx context.Context, k, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", found,
	)
}

// LogSave logs an image save.
func (l *Logger) LogSave(ctx context.Context, dir, base string, points int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"dir", dir,
			"base", base,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "image saved",
		"dir", dir,
		"base", base,
		"points", points,
	)
}

// LogLoad logs an image load.
func (l *Logger) LogLoad(ctx context.Context, dir, base string, points int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"dir", dir,
			"base", base,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "image loaded",
		"dir", dir,
		"base", base,
		"points", points,
	)
}

// LogCompact logs a compaction.
func (l *Logger) LogCompact(ctx context.Context, tombstones, survivors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed",
			"tombstones", tombstones,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "compaction completed",
		"tombstones", tombstones,
		"survivors", survivors,
	)
}

// LogPublish logs an image upload or download.
func (l *Logger) LogPublish(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, op+" completed", "name", name)
}
