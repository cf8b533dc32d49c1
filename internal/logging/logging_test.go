package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/marketfeed/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("frame dead-lettered", "cause", "malformed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, `"cause":"malformed"`) {
		t.Errorf("output = %q, want JSON attribute", out)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestor.log")
	logger, closer, err := New(config.LoggingConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello k=v") {
		t.Errorf("log file = %q", data)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, _, err := New(config.LoggingConfig{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
