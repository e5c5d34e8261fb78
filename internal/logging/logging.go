package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls rotated file output. An empty Dir disables it.
type FileConfig struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Setup builds the process logger, installs it as the slog default and returns it.
// With file logging enabled output goes to stdout and the rotated file.
func Setup(level string, file FileConfig, fileName string) (*slog.Logger, error) {
	var w io.Writer = os.Stdout
	noColor := false

	if file.Dir != "" {
		if file.MaxSizeMB <= 0 || file.MaxBackups <= 0 || file.MaxAgeDays <= 0 {
			return nil, fmt.Errorf("invalid log config: size=%d backups=%d age_days=%d", file.MaxSizeMB, file.MaxBackups, file.MaxAgeDays)
		}
		if err := os.MkdirAll(file.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir failed: %w", err)
		}
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(file.Dir, fileName),
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		})
		noColor = true
	}

	logger := New(w, level, noColor)
	slog.SetDefault(logger)
	if file.Dir != "" {
		logger.Info("File logging enabled", "path", filepath.Join(file.Dir, fileName))
	}
	return logger, nil
}

// New creates a tint-backed logger writing to w.
func New(w io.Writer, level string, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.RFC3339,
		AddSource:  true,
		NoColor:    noColor,
	}))
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
