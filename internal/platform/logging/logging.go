package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the root logger. Components derive their own with
// logger.With().Str("component", ...).
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a silenced logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
