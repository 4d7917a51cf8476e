package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide logger. Development runs get a
// human-readable console writer at debug level; everything else emits JSON
// at info level.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	var out io.Writer = os.Stdout
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "fluxbatch").
		Logger()
}

// Logger aliases zerolog.Logger so the rest of the codebase depends on a
// single logging contract instead of importing the third-party module
// everywhere.
type Logger = zerolog.Logger
