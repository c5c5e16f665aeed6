package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json

	// Rotating log file. Empty keeps output on stderr only.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// New builds a slog logger from options. The returned closer releases the log file
// and is never nil.
func New(options *Options) (*slog.Logger, io.Closer, error) {
	if options == nil {
		options = &Options{}
	}

	level, err := parseLevel(options.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if options.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    orDefault(options.MaxSizeMB, 100),
			MaxBackups: orDefault(options.MaxBackups, 5),
			MaxAge:     orDefault(options.MaxAgeDays, 30),
			Compress:   options.Compress,
		}
		w = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, nil, errors.Errorf("unsupported log format: %s", options.Format)
	}

	return slog.New(handler), closer, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level: %s", level)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
