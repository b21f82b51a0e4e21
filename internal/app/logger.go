package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"taskgate/internal/config"
)

// NewLogger builds the application logger from the log section of the config.
// A nil writer means stderr.
func NewLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	if cfg == nil {
		cfg = config.Default()
	}
	level := zerolog.InfoLevel
	if cfg.Log.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Log.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	zerolog.TimestampFieldName = "timestamp"

	switch cfg.Log.Format {
	case "", "json":
	case "console":
		cw := zerolog.NewConsoleWriter()
		cw.TimeFormat = time.DateTime
		cw.Out = w
		w = cw
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format: %s", cfg.Log.Format)
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger(), nil
}
