// Package logging builds the process logger: a slog.Logger writing to the
// console and, when a log directory is configured, to a per-run log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilePrefix and FileTimeLayout name per-run log files, e.g.
// query_manager_2024_03_01-12_30_00.log.
const (
	FilePrefix     = "query_manager_"
	FileTimeLayout = "2006_01_02-15_04_05"
)

// Config holds logger configuration.
type Config struct {
	Level  string    // debug, info, warn, error; empty means info
	Format string    // "text" or "json"; empty means text
	Dir    string    // directory for the per-run log file; empty disables it
	Prefix string    // log file name prefix; empty means FilePrefix
	Output io.Writer // console sink; nil means os.Stderr

	Now func() time.Time // clock for the file name; nil means time.Now
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is a configured logger plus the resources behind it.
type Logger struct {
	*slog.Logger

	// FilePath is the per-run log file, empty when none was opened.
	FilePath string

	file *os.File
}

// Close releases the log file. It is safe to call more than once.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New builds a Logger from cfg. When cfg.Dir is set the directory is created
// and every record is written both to the console and to the file.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}

	l := &Logger{}
	if cfg.Dir != "" {
		now := time.Now
		if cfg.Now != nil {
			now = cfg.Now
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", cfg.Dir, err)
		}
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = FilePrefix
		}
		l.FilePath = filepath.Join(cfg.Dir, prefix+now().Format(FileTimeLayout)+".log")
		f, err := os.OpenFile(l.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		out = io.MultiWriter(out, f)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		_ = l.Close()
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
