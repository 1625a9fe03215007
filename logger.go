package stampcut

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/stampcut/coordinator"
	"github.com/hupe1980/stampcut/resultlog"
)

// Logger wraps slog.Logger with stampcut-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithRunID adds the run ID field to the logger.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// WithPhase adds a phase field to the logger.
func (l *Logger) WithPhase(phase coordinator.Phase) *Logger {
	return &Logger{
		Logger: l.Logger.With("phase", string(phase)),
	}
}

// WithTarget adds target fields to the logger.
func (l *Logger) WithTarget(index int, id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("target", index, "id", id),
	}
}

// LogPhase logs the end of a phase with its duration.
func (l *Logger) LogPhase(ctx context.Context, phase string, items int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "phase failed",
			"phase", phase,
			"items", items,
			"duration", d,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "phase completed",
			"phase", phase,
			"items", items,
			"duration", d,
		)
	}
}

// LogFootprint logs an image whose footprint could not be computed.
func (l *Logger) LogFootprint(ctx context.Context, index int, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, "image skipped",
			"image", index,
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "footprint computed",
			"image", index,
			"name", name,
		)
	}
}

// LogStamp logs the outcome of one target.
func (l *Logger) LogStamp(ctx context.Context, e resultlog.Entry) {
	switch e.Status {
	case resultlog.Failed:
		l.WarnContext(ctx, "stamp failed",
			"target", e.Target,
			"id", e.ID,
			"images", e.Images,
			"reason", e.Reason,
		)
	case resultlog.OK:
		l.DebugContext(ctx, "stamp written",
			"target", e.Target,
			"id", e.ID,
			"images", e.Images,
		)
	default:
		l.DebugContext(ctx, "stamp discarded",
			"target", e.Target,
			"id", e.ID,
			"images", e.Images,
			"status", e.Status.String(),
		)
	}
}
