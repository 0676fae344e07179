package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger for the given level and format ("json" or "console").
func New(level, format string) (zerolog.Logger, error) {
	return NewWithWriter(level, format, os.Stderr)
}

func NewWithWriter(level, format string, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logger zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		logger = zerolog.New(out).With().Timestamp().Logger()
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, errors.New("unsupported log format")
	}
	return logger.Level(lvl), nil
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// NonCritical starts a warn event for a failure that is contained and never surfaced to the user.
func NonCritical(log zerolog.Logger, err error) *zerolog.Event {
	return log.Warn().Err(err).Bool("non_critical", true)
}
