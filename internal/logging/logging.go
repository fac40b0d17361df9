// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// New builds a logger writing to w. Format "json" emits one JSON object per
// line; anything else uses the human-readable console writer.
func New(level, format string, w io.Writer) log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: timeFormat,
	}
	if format == "json" {
		l.Writer = &log.IOWriter{Writer: w}
	} else {
		l.Writer = &log.ConsoleWriter{Writer: w, QuoteString: true, EndWithMessage: true}
	}
	return l
}

// Setup replaces log.DefaultLogger so package-level calls pick up the
// configured level and format.
func Setup(level, format string) {
	log.DefaultLogger = New(level, format, os.Stderr)
}
