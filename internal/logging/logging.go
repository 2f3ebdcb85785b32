// Package logging builds the logrus logger shared by every kleis component.
//
// The terminal belongs to the Bubble Tea program, so logs go to a file by
// default. An empty path writes to stderr instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moradology/kleis/internal/config"
)

// New returns a logger configured from cfg and a close function for the
// underlying file. The close function is never nil.
func New(cfg config.LoggingConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			DisableColors:   cfg.File != "",
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	out, closeFn, err := openOutput(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(out)
	return logger, closeFn, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return os.Stderr, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return file, file.Close, nil
}
