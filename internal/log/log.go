package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	base     = newBase(os.Stderr)
)

func newBase(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	levelVar.Set(toSlog(l))
}

// SetOutput redirects all subsequent log lines. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newBase(w)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debug(msg string, kv ...any) {
	current().Log(context.Background(), slog.LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Log(context.Background(), slog.LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Log(context.Background(), slog.LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Log(context.Background(), slog.LevelError, msg, extended...)
}

// Logger is a component-scoped logger with the same call shape as the
// package-level functions.
type Logger struct {
	attrs []any
}

// Component returns a Logger that tags every line with component=name.
func Component(name string) *Logger {
	return &Logger{attrs: []any{"component", name}}
}

// With returns a copy of l carrying the extra key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(kv))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, kv...)
	return &Logger{attrs: attrs}
}

func (l *Logger) Debug(msg string, kv ...any) { Debug(msg, l.merge(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { Info(msg, l.merge(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { Warn(msg, l.merge(kv)...) }

func (l *Logger) Error(msg string, err error, kv ...any) {
	Error(msg, err, l.merge(kv)...)
}

func (l *Logger) merge(kv []any) []any {
	if l == nil || len(l.attrs) == 0 {
		return kv
	}
	out := make([]any, 0, len(l.attrs)+len(kv))
	out = append(out, l.attrs...)
	return append(out, kv...)
}
