package logger

import (
	"io"
	"log/slog"
	"os"
)

// New собирает JSON-логгер процесса. В dev включается debug.
func New(env, service string) *slog.Logger {
	return NewWithWriter(os.Stdout, env, service)
}

func NewWithWriter(w io.Writer, env, service string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	l := slog.New(h)
	if service != "" {
		l = l.With("service", service)
	}
	return l
}

// Discard — для тестов и компонентов, которым логгер не передали.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
