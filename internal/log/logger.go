package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. An explicit level wins; otherwise production logs at
// info and everything else at debug.
func New(environment, level string) zerolog.Logger {
	production := strings.EqualFold(environment, "production")

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    production,
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	zerolog.SetGlobalLevel(resolveLevel(level, production))

	return logger
}

func resolveLevel(level string, production bool) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	if production {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
