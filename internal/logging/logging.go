// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level string
	// File, when set, receives a copy of every line and is rotated by size.
	File string
}

// New returns a text logger writing to out and, optionally, to a rotated file.
// The returned writer is what gin should log requests to. Close flushes the
// log file when one is open.
func New(opts Options, out io.Writer) (*slog.Logger, io.Writer, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, nil, err
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotated)
		closeFn = rotated.Close
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return logger, out, closeFn, nil
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
