// Package logging builds the structured logger shared by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects the logger's level and output format.
type Config struct {
	// Level is a logrus level name; empty means info.
	Level string
	// Format is "text" or "json"; empty means text.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// New returns a logger configured by cfg.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format %q: want text or json", cfg.Format)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)
	return log, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
