package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// LevelTrace sits below debug for per-message wire dumps.
const LevelTrace = slog.LevelDebug - 1

type Options struct {
	Level  string
	Format string // "text", "json" or "auto"
	Out    io.Writer
}

// New builds the process logger. In auto format a terminal gets text and
// anything else (native log collectors, files) gets JSON.
func New(opts Options) *slog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	format := strings.ToLower(opts.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok && isTerminal(f.Fd()) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(out, hopts))
	}
	return slog.New(slog.NewJSONHandler(out, hopts))
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NativeLogger lets the native host write into the Go log stream with
// plain string calls.
type NativeLogger struct {
	ctx    context.Context
	logger *slog.Logger
}

func NewNative(ctx context.Context, logger *slog.Logger) *NativeLogger {
	return &NativeLogger{ctx: ctx, logger: logger.With("source", "native")}
}

func (l *NativeLogger) Trace(message string) {
	l.logger.Log(l.ctx, LevelTrace, message)
}

func (l *NativeLogger) Debug(message string) {
	l.logger.DebugContext(l.ctx, message)
}

func (l *NativeLogger) Info(message string) {
	l.logger.InfoContext(l.ctx, message)
}

func (l *NativeLogger) Warning(message string) {
	l.logger.WarnContext(l.ctx, message)
}

func (l *NativeLogger) Error(message string) {
	l.logger.ErrorContext(l.ctx, message)
}
