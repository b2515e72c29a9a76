// Package logging configures the process-wide structured logger.
// Author: momentics <momentics@gmail.com>
//
// Output goes to standard output as text or JSON and, when a file is
// configured, also to a size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/momentics/tsrelay/api"
)

// Options selects level, encoding and the optional rotated file.
type Options struct {
	Level      string
	Format     string // "text" or "json"
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, api.ErrInvalidArgument)
}

// New builds a logger writing to stdout and, if opts.File is set, to a
// rotated file. The returned closer releases the file and is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	return newWithStdout(os.Stdout, opts)
}

func newWithStdout(stdout io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	w := stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		w = io.MultiWriter(stdout, lj)
		closer = lj
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, hopts)
	case "", "text":
		handler = slog.NewTextHandler(w, hopts)
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("log format %q: %w", opts.Format, api.ErrInvalidArgument)
	}
	return slog.New(handler), closer, nil
}

// Setup builds the logger with New and installs it as slog's default.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	l, c, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(l)
	return l, c, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
