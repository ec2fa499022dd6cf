// Package logging holds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/exp/ordered"
	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. It discards everything until Setup runs.
var L = clog.New(io.Discard)

// Options configures Setup.
type Options struct {
	Level string
	File  string
	// Format is "text" (the default), "json" or "logfmt".
	Format string
	// Verbose also writes log lines to stderr.
	Verbose bool
}

// Setup points L at the log file (and stderr when verbose) and returns a
// function that closes the file.
func Setup(opts Options) (func() error, error) {
	level, err := clog.ParseLevel(strings.ToLower(ordered.First(opts.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	formatter, err := parseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	var (
		writers []io.Writer
		closer  = func() error { return nil }
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return nil, fmt.Errorf("log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f.Close
	}
	if opts.Verbose {
		writers = append(writers, os.Stderr)
		if level > clog.DebugLevel {
			level = clog.DebugLevel
		}
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	L = clog.NewWithOptions(io.MultiWriter(writers...), clog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "deepresearch",
		Formatter:       formatter,
	})
	return closer, nil
}

// With returns a child logger carrying the given key/value pairs.
func With(keyvals ...any) *clog.Logger {
	return L.With(keyvals...)
}

func parseFormat(format string) (clog.Formatter, error) {
	switch strings.ToLower(ordered.First(format, "text")) {
	case "text":
		return clog.TextFormatter, nil
	case "json":
		return clog.JSONFormatter, nil
	case "logfmt":
		return clog.LogfmtFormatter, nil
	}
	return 0, fmt.Errorf("log format %q: want text, json or logfmt", format)
}
