package logutil

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func toZeroLogLevel(logLevel string) zerolog.Level {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// InitZeroLog sets the global log level and returns a ctx carrying the base logger.
func InitZeroLog(ctx context.Context, logLevel string) context.Context {
	zerolog.SetGlobalLevel(toZeroLogLevel(logLevel))
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	return logger.WithContext(ctx)
}
