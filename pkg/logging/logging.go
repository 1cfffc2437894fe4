// Package logging configures the process-wide structured logger, backed
// by github.com/sirupsen/logrus.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is one of logrus's level names: "debug", "info", "warn",
	// "error". Empty defaults to "info".
	Level string
	// JSON selects the JSON formatter instead of the text formatter,
	// for log aggregation pipelines.
	JSON bool
}

// New builds a *logrus.Logger writing to stderr per Options.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Component returns an entry pre-tagged with a "component" field.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
