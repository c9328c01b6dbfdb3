package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid JSON config", Config{Level: "info", Format: "json"}, false},
		{"valid text config", Config{Level: "debug", Format: "text"}, false},
		{"empty config uses defaults", Config{}, false},
		{"invalid log level", Config{Level: "invalid", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "invalid"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		level    slog.Level
		wantLog  bool
	}{
		{"debug level logs debug", "debug", slog.LevelDebug, true},
		{"info level filters debug", "info", slog.LevelDebug, false},
		{"info level logs info", "info", slog.LevelInfo, true},
		{"warn level filters info", "warn", slog.LevelInfo, false},
		{"warn level logs warn", "warn", slog.LevelWarn, true},
		{"error level filters warn", "error", slog.LevelWarn, false},
		{"error level logs error", "error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger, err := New(Config{Level: tt.logLevel, Format: "json", Writer: buf})
			if err != nil {
				t.Fatalf("Failed to create logger: %v", err)
			}

			logger.Log(context.Background(), tt.level, "test message")

			if hasLog := strings.Contains(buf.String(), "test message"); hasLog != tt.wantLog {
				t.Errorf("Log filtering failed: got log=%v, want log=%v, output=%s", hasLog, tt.wantLog, buf.String())
			}
		})
	}
}

func TestLogger_JSONFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.With("component", "sandbox").Info("Evaluation complete", "allowed", true, "fuel_consumed", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["msg"] != "Evaluation complete" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "sandbox" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["allowed"] != true {
		t.Errorf("expected allowed=true, got %v", entry["allowed"])
	}
	if entry["fuel_consumed"] != float64(42) {
		t.Errorf("expected fuel_consumed=42, got %v", entry["fuel_consumed"])
	}
}

func TestLogger_TextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "text", Writer: buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("Policy module reloaded", "version", "1.0.0")

	out := buf.String()
	if !strings.Contains(out, `msg="Policy module reloaded"`) || !strings.Contains(out, "version=1.0.0") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestLogger_AddSource(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", AddSource: true, Writer: buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("test message")

	if !strings.Contains(buf.String(), `"source"`) {
		t.Errorf("expected source field in output: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled for any level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"TEXT", FormatText, false},
		{"console", FormatJSON, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func BenchmarkLogger_DebugDisabled(b *testing.B) {
	logger, _ := New(Config{Level: "info", Format: "json", Writer: &bytes.Buffer{}})
	ctx := WithRequestID(context.Background(), "req-123")

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		logger.DebugContext(ctx, "Guest log", "source", "guest")
	}
}
