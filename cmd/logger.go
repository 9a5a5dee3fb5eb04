package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/s0up4200/removeqtorrent/config"
)

// setupLogger configures the zerolog logger. When a log file is configured
// every event is written to it as JSON in addition to stderr; the returned
// func closes that file.
func setupLogger(cfg config.LoggingConfig) (zerolog.Logger, func() error, error) {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	closer := func() error { return nil }

	var out io.Writer = consoleWriter(cfg, os.Stderr)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, f)
		closer = f.Close
	}

	return zerolog.New(out).With().Timestamp().Logger(), closer, nil
}

func consoleWriter(cfg config.LoggingConfig, out *os.File) io.Writer {
	// Configure output format
	if cfg.Format == "json" {
		return out
	}

	// Console format
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(out.Fd()),
	}
}
