package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Separator is the banner rule used by every tool.
const Separator = "==========================================================="

// NewLogger builds a logger writing to w. format is "console" or "json".
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	switch format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// SetupGlobal installs a stdout logger for the config as the global logger.
func SetupGlobal(cfg *Config) (zerolog.Logger, error) {
	logger, err := NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return logger, err
	}
	log.Logger = logger
	return logger, nil
}

// Banner writes the tool's start-up banner.
func Banner(logger zerolog.Logger, tool, version string) {
	logger.Info().Msg(Separator)
	logger.Info().Msgf("%s v%s", tool, version)
	logger.Info().Msg(Separator)
}
