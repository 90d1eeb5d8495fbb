package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"izakaya/internal/config"
)

// cliLogLevel is the level resolved for this invocation. An auto-started
// server inherits it.
var cliLogLevel = slog.LevelInfo

// setupLogging installs the default logger writing to w. The --log-level
// flag wins over log_level from config, which already carries the
// IZAKAYA_LOG_LEVEL override. A bad flag is an error; a bad configured
// value falls back to the default level and yields a warning.
func setupLogging(w io.Writer, flagLevel string, cfg *config.Config) (string, error) {
	var warning string
	level, err := parseLogLevel(flagLevel)
	switch {
	case strings.TrimSpace(flagLevel) != "" && err != nil:
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	case strings.TrimSpace(flagLevel) == "":
		level, err = parseLogLevel(cfg.LogLevel)
		if err != nil {
			level = slog.LevelInfo
			warning = fmt.Sprintf("warning: invalid log_level %q; defaulting to %s", cfg.LogLevel, config.DefaultLogLevel)
		}
	}

	cliLogLevel = level
	slog.SetDefault(newLogger(w, level))
	return warning, nil
}

// parseLogLevel accepts slog level names, "warning" and numeric levels. A
// blank value is the configured default.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		value = config.DefaultLogLevel
	case "warning":
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger builds a text logger. Debug output carries source locations.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
}
