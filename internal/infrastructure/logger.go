package infrastructure

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/architeacher/amqp-jobqueue/internal/config"
)

type Logger struct {
	zerolog.Logger
}

func New(cfg config.LoggingConfig) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger

	switch cfg.Format {
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	default:
		logger = zerolog.New(os.Stderr)
	}

	logger = logger.Level(level).With().Timestamp().Logger()

	return &Logger{Logger: logger}
}
