// Package logging builds the application logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "super-resolution.log"

// Config holds logging options.
type Config struct {
	// Level is a logrus level name such as "info" or "debug".
	Level string `yaml:"level"`
	// Debug switches to colored text output and forces debug level.
	Debug bool `yaml:"-"`
	// Dir enables rotating file output in addition to stdout.
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  50,
		MaxBackups: 10,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// Setup returns a configured logger and a function that closes any log file.
func Setup(cfg Config) (*logrus.Logger, func() error, error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg Config, stdout io.Writer) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	closeFn := func() error { return nil }

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	if cfg.Debug {
		level = logrus.DebugLevel
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	logger.SetLevel(level)

	out := stdout
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, fileName),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(stdout, lj)
		closeFn = lj.Close
	}
	logger.SetOutput(out)

	return logger, closeFn, nil
}
