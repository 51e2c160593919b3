// Package logger wraps log/slog behind a small interface so the commands
// and the HTTP layer share one handler without caring how it renders.
package logger

import (
	"log/slog"
	"strings"
)

// Logger is the logging surface the CLI commands program against. The
// engine itself takes a *slog.Logger; New hands both views of the same
// handler to the caller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// New wraps a slog handler in the Logger interface.
func New(h slog.Handler) Logger {
	return slogView{slog.New(h)}
}

type slogView struct {
	l *slog.Logger
}

func (v slogView) Debug(msg string, args ...any) { v.l.Debug(msg, args...) }
func (v slogView) Info(msg string, args ...any)  { v.l.Info(msg, args...) }
func (v slogView) Warn(msg string, args ...any)  { v.l.Warn(msg, args...) }
func (v slogView) Error(msg string, args ...any) { v.l.Error(msg, args...) }

func (v slogView) With(args ...any) Logger {
	return slogView{v.l.With(args...)}
}

func (v slogView) WithGroup(name string) Logger {
	return slogView{v.l.WithGroup(name)}
}

// ParseLevel maps a --log-level flag value to a slog level. Matching is
// case-insensitive; unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
