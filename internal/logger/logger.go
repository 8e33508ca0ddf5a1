package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root zerolog logger. Services derive component
// sub-loggers from it with log.With().Str("component", ...).
//
// format "pretty" writes colorized console output for local development;
// anything else writes JSON lines to stdout for log shippers.
func Setup(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = os.Stdout
	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	ctx := zerolog.New(writer).With().Timestamp()
	if lvl <= zerolog.DebugLevel {
		// Caller info is only worth the cost when debugging.
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
