// Package logger builds the zerolog logger shared by all commands.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level string `default:"info" validate:"oneof=debug info warn error"`
	JSON  bool
}

// Build returns a logger writing to out, stderr when out is nil. Output is human
// readable unless JSON is set, then it is one JSON object per line.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "msg"

	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func Component(parent zerolog.Logger, component string) zerolog.Logger {
	if component == "" {
		return parent
	}
	return parent.With().Str("component", component).Logger()
}
