package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)
	logger.Log(t.Context(), LevelTrace, "lowering", "op", "pool1")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("expected TRACE level name, got %q", out)
	}

	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("expected shortened source, got %q", out)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Log(t.Context(), LevelTrace, "hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output below info, got %q", buf.String())
	}
}
