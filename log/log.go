package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var level = zerolog.InfoLevel

// SetLevel sets the level of all loggers created afterwards. Unknown levels are ignored.
func SetLevel(l string) {
	parsed, err := zerolog.ParseLevel(l)
	if err != nil || l == "" {
		return
	}

	level = parsed
}

// NewLogger returns a console logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
