// Package logging provides the structured logger shared by every component
// of the endorsement pipeline.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so call sites can depend on a narrow type
// instead of the concrete logrus package.
type Logger struct {
	*logrus.Logger
}

// Config controls level and format; output always goes to stdout.
type Config struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

// New builds a Logger from Config, defaulting to info/text on bad input.
func New(cfg Config) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger}
}

// NewDefault builds an info-level, text-format logger for tests and tools
// that don't go through full config loading.
func NewDefault() *Logger {
	return New(Config{Level: "info", Format: "text"})
}

// WithComponent tags every entry with the emitting component name, the
// convention handlers and services use to keep multi-component log streams
// greppable.
func (l *Logger) WithComponent(name string) *logrus.Entry {
	return l.Logger.WithField("component", name)
}
