// Package log builds the process-wide zerolog logger. Console output goes to
// stderr so structured logs stay separable from anything the CLI prints.
package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "marketchat"

// New returns a logger at the given level. Unknown level strings fall back
// to info rather than failing startup.
func New(level string) *zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(writer).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return &logger
}

// ParseLevel maps a config level string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
