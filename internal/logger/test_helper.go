package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// NewTest returns a logger that discards everything.
func NewTest() *Logger {
	return &Logger{
		logger:   zerolog.New(io.Discard).Level(zerolog.Disabled),
		language: fallbackLanguage,
		messages: fallbackMessages(),
	}
}

// NewTestWithWriter logs JSON lines to w so tests can assert on them.
func NewTestWithWriter(w io.Writer) *Logger {
	return &Logger{
		logger:   zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger(),
		language: fallbackLanguage,
		messages: fallbackMessages(),
	}
}
