// Package logging builds the process-wide slog logger from config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/irontracks/musclemap/internal/config"
)

// New returns a logger writing to stdout, a rotating file, or both. The
// returned closer flushes and closes the file writer, if any.
func New(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	return NewConsole(cfg, os.Stdout)
}

// NewConsole is New with console output sent to w instead of stdout.
func NewConsole(cfg config.LogConfig, w io.Writer) (*slog.Logger, io.Closer) {
	out, closer := output(cfg, w)
	opts := &slog.HandlerOptions{Level: Level(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), closer
}

func output(cfg config.LogConfig, console io.Writer) (io.Writer, io.Closer) {
	if cfg.File == "" {
		return console, nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  50, // megabytes
		Compress: true,
	}
	if cfg.Stdout {
		return CombinedWriter{console, file}, file
	}
	return file, file
}

// Level parses a level name; unknown names mean info.
func Level(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// CombinedWriter writes to every writer, continuing past failures.
type CombinedWriter []io.Writer

func (cw CombinedWriter) Write(p []byte) (int, error) {
	var err error
	for _, w := range cw {
		if _, werr := w.Write(p); werr != nil {
			err = multierr.Append(err, werr)
		}
	}
	return len(p), err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
