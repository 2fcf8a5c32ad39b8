package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelWarn, true)

	l.Info("hidden")
	l.Warn("drowsy", "ear", 0.12)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"drowsy"`) || !strings.Contains(out, `"ear":0.12`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

func TestInit_AfterImplicitSetup(t *testing.T) {
	t.Cleanup(func() { level.Set(slog.LevelInfo) })

	// Logging before Init sets the logger up at the info default.
	Debug("before init")
	if L().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before Init")
	}

	Init("debug")
	if !L().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Init(debug) after implicit setup: debug still disabled")
	}

	Init("error")
	if L().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Init(error): warn still enabled")
	}
}
