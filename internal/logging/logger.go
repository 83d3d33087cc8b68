package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethicore/arbiter/internal/config"
)

const (
	defaultMaxSize    = 10 * 1024 * 1024 // 10MB before rotation
	defaultMaxBackups = 3
)

// New creates a configured logger. When a log file is configured the
// logger writes to both stdout and the file, rotating the file when it
// exceeds the size limit.
func New(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	if cfg.File != "" {
		file, err := openLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, file))
	}

	return logger, nil
}

// openLogFile opens the log file for appending, rotating it first if it
// has grown past the size limit.
func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	if err := rotateIfNeeded(path); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}

func rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.Size() < defaultMaxSize {
		return nil
	}

	// Shift existing backups up, dropping the oldest.
	for i := defaultMaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", path, i)
		newPath := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}

	if err := os.Rename(path, fmt.Sprintf("%s.1", path)); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}
