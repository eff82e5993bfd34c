// Package logging builds the zerolog loggers used by the launcher and by
// every stabilizer instance.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Format selects the log encoding.
type Format string

const (
	// FormatConsole writes human-readable lines.
	FormatConsole Format = "console"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// New creates a timestamped logger writing to w at level.
func New(w io.Writer, format Format, level zerolog.Level) zerolog.Logger {
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewConsole creates a console logger on stdout.
func NewConsole(level zerolog.Level) zerolog.Logger {
	return New(os.Stdout, FormatConsole, level)
}

// ParseLevel maps a level name to a zerolog level, falling back to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// ForInstance derives the logger of one stabilizer instance. Every line it
// writes carries the instance number, its source, its device and a run id
// unique to this start of the instance.
func ForInstance(parent zerolog.Logger, instance int, source string, device int) zerolog.Logger {
	return parent.With().
		Str("component", "stabilizer").
		Int("instance", instance).
		Str("source", source).
		Int("device", device).
		Str("run", uuid.NewString()).
		Logger()
}
