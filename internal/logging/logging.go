package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs a console logger on stderr as the global zerolog logger.
// LOG_LEVEL overrides fallback.
func Init(fallback zerolog.Level) {
	InitWriter(os.Stderr, fallback)
}

func InitWriter(out io.Writer, fallback zerolog.Level) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), fallback)

	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	log.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps the LOG_LEVEL vocabulary onto zerolog levels.
func ParseLevel(s string, fallback zerolog.Level) zerolog.Level {
	switch s {
	case "dev", "development", "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "production", "prod":
		return zerolog.ErrorLevel
	default:
		return fallback
	}
}
