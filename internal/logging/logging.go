// Package logging builds the process logger from command line settings.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects how log entries are rendered.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat converts a format string into a Format value.
func ParseFormat(format string) (Format, error) {
	switch format {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return -1, fmt.Errorf("unsupported log format: %q", format)
	}
}

// ParseLevel converts a level name into a zerolog.Level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unsupported log level: %q", level)
	}
	return l, nil
}

// Writer wraps out according to the format.
func Writer(out io.Writer, f Format) io.Writer {
	if f == FormatText {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    out != os.Stdout && out != os.Stderr,
		}
	}
	return out
}

// New returns a logger writing to out with the wanted level and format.
func New(out io.Writer, level zerolog.Level, f Format) zerolog.Logger {
	return zerolog.New(Writer(out, f)).
		Level(level).
		With().
		Timestamp().
		Str("service", "topicsink").
		Logger()
}
