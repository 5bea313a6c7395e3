// Package perflog implements the optional GMSEC performance logger: when a
// Connection is configured with gmsec-log-performance, every completed
// driver publish is appended to the named file as a structured record of
// subject and wall-clock duration.
package perflog

import (
	"log/slog"
	"os"
	"time"
)

// Logger appends one JSON record per publish to its backing file.
type Logger struct {
	out  *slog.Logger
	file *os.File
}

// Open creates or appends to the file at path. An empty path means
// performance logging is not configured; Open returns a nil *Logger in
// that case, and every method on a nil *Logger is a safe no-op, so callers
// never need to branch on whether performance logging is enabled.
func Open(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Logger{out: slog.New(slog.NewJSONHandler(f, nil)), file: f}, nil
}

// RecordPublish appends one record for a completed (or failed) publish.
func (l *Logger) RecordPublish(subject string, dur time.Duration, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.out.Error("publish", slog.String("subject", subject), slog.Duration("duration", dur), slog.String("error", err.Error()))
		return
	}
	l.out.Info("publish", slog.String("subject", subject), slog.Duration("duration", dur))
}

// Close releases the backing file. Safe to call on a nil *Logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}
