// Package logging builds the process logger: JSON records to a rotating file
// in the output folder and plain text on stderr.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "dronetrace.slog"

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time

	file *lumberjack.Logger
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
	}
}

// New logs at level. With a dir, records go as JSON to dir/dronetrace.slog
// and only warnings and errors reach stderr; without one, everything goes to
// stderr as text.
func New(level, dir string, stderr io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := &Logger{Start: time.Now()}
	if dir == "" {
		l.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl}))
		return l, nil
	}

	l.file = &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    32, // MB
		MaxBackups: 3,
	}
	if lvl == slog.LevelDebug {
		l.file.MaxSize = 256
	}
	l.LogFile = l.file.Filename

	l.Logger = slog.New(tee{
		slog.NewJSONHandler(l.file, &slog.HandlerOptions{Level: lvl}),
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: max(lvl, slog.LevelWarn)}),
	})

	l.Info("logging started", slog.Time("start", l.Start), slog.String("level", lvl.String()))
	l.Info("system information",
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()))
	if bi, ok := debug.ReadBuildInfo(); ok {
		l.Debug("build", slog.String("go", bi.GoVersion), slog.String("path", bi.Path), slog.String("version", bi.Main.Version))
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler), Start: time.Now()}
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.Info("logging stopped", slog.Duration("uptime", time.Since(l.Start)))
	return l.file.Close()
}

// tee fans records out to every handler that accepts their level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
