// Package logger builds the zerolog loggers used across complaintdesk.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New returns a logger writing to stdout. pretty is "auto", "true" or
// "false"; auto picks the console format when stdout is a terminal.
func New(level, pretty string) zerolog.Logger {
	usePretty := pretty == "true"
	if pretty == "auto" {
		usePretty = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
	return NewWithConfig(os.Stdout, level, usePretty, false)
}

// NewWithConfig returns a logger writing to out at the given level.
func NewWithConfig(out io.Writer, level string, pretty, noColor bool) zerolog.Logger {
	var log zerolog.Logger

	if pretty {
		output := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
		log = zerolog.New(output).With().Timestamp().Logger()
	} else {
		log = zerolog.New(out).With().Timestamp().Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return log.Level(lvl)
}

// NewFile returns a JSON logger appending to path. The terminal dashboards
// log here so output does not corrupt the screen.
func NewFile(path, level string) (zerolog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return NewWithConfig(f, level, false, true), f, nil
}
