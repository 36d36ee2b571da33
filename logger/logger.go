// Package logger builds the zerolog loggers used by cfo.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ParseLevel maps a configuration level name to a zerolog level; unknown
// names give warn.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// New creates a logger writing to w. Format "json" writes one JSON object
// per line; "console" writes human readable lines, colored when w is a
// terminal.
func New(level, format string, w io.Writer) zerolog.Logger {
	out := w
	if format != "json" {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			cw.NoColor = false
		}
		out = cw
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// NewSilent creates a logger that discards all output.
func NewSilent() zerolog.Logger { return zerolog.New(io.Discard) }
