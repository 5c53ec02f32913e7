package badger

import (
	"strings"

	"github.com/rs/zerolog"
)

// logger forwards badger's printf-style log lines to zerolog.
type logger struct {
	zerolog.Logger
}

func (l logger) Errorf(format string, args ...interface{}) {
	l.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l logger) Warningf(format string, args ...interface{}) {
	l.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l logger) Infof(format string, args ...interface{}) {
	l.Info().Msgf(strings.TrimSpace(format), args...)
}

func (l logger) Debugf(format string, args ...interface{}) {
	l.Debug().Msgf(strings.TrimSpace(format), args...)
}
