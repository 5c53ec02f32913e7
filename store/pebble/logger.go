package pebble

import (
	"strings"

	"github.com/rs/zerolog"
)

// logger forwards pebble's log lines to zerolog. Like pebble's default logger,
// Fatalf exits the process.
type logger struct {
	zerolog.Logger
}

func (l logger) Infof(format string, args ...interface{}) {
	l.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l logger) Fatalf(format string, args ...interface{}) {
	l.Fatal().Msgf(strings.TrimSpace(format), args...)
}
