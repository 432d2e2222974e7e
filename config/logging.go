package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds a logger writing to w. The level and format have been
// validated by Load; an unknown level falls back to info.
func (c LoggingConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
