package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"izakaya/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{raw: "", want: slog.LevelInfo},
		{raw: " DEBUG ", want: slog.LevelDebug},
		{raw: "warning", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "-4", want: slog.LevelDebug},
		{raw: "verbose", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseLogLevel(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseLogLevel(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("parseLogLevel(%q) = %v, %v; want %v", tc.raw, got, err, tc.want)
		}
	}
}

func TestSetupLoggingPrecedence(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	cfg := config.Default()
	cfg.LogLevel = "error"

	var buf bytes.Buffer
	warning, err := setupLogging(&buf, "debug", &cfg)
	if err != nil || warning != "" {
		t.Fatalf("setup: warning=%q err=%v", warning, err)
	}
	if cliLogLevel != slog.LevelDebug {
		t.Fatalf("expected flag level to win, got %v", cliLogLevel)
	}
	slog.Debug("visible")
	if !strings.Contains(buf.String(), "visible") || !strings.Contains(buf.String(), "source=") {
		t.Fatalf("expected debug line with source, got %q", buf.String())
	}

	buf.Reset()
	if _, err := setupLogging(&buf, "", &cfg); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if cliLogLevel != slog.LevelError {
		t.Fatalf("expected configured level, got %v", cliLogLevel)
	}
	slog.Warn("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected warn suppressed at error level, got %q", buf.String())
	}
}

func TestSetupLoggingRejectsBadValues(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	cfg := config.Default()
	if _, err := setupLogging(&bytes.Buffer{}, "verbose", &cfg); err == nil {
		t.Fatal("expected error for an invalid flag")
	}

	cfg.LogLevel = "loud"
	warning, err := setupLogging(&bytes.Buffer{}, "", &cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.Contains(warning, `invalid log_level "loud"`) || cliLogLevel != slog.LevelInfo {
		t.Fatalf("expected fallback warning, got %q at %v", warning, cliLogLevel)
	}
}
