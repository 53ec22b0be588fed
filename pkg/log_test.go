package pkg

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// capture routes the default logger to a buffer at level until the test
// ends.
func capture(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	savedLevel := GetLogLevel()
	savedLogger := logger()
	t.Cleanup(func() {
		SetLogLevel(savedLevel)
		SetLogger(savedLogger)
	})

	var buf bytes.Buffer
	SetLogLevel(level)
	SetLogger(NewLogger(&buf, nil))
	return &buf
}

func TestSetLogLevel(t *testing.T) {
	saved := GetLogLevel()
	defer SetLogLevel(saved)

	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		SetLogLevel(level)
		if got := GetLogLevel(); got != level {
			t.Errorf("GetLogLevel() = %v, want %v", got, level)
		}
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
		level     string
	}{
		{"debug", LogDebug, ComponentStack, "DEBUG"},
		{"info", LogInfo, ComponentBridge, "INFO"},
		{"warn", LogWarn, ComponentUART, "WARN"},
		{"error", LogError, ComponentWatchdog, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, slog.LevelDebug)
			tt.log(tt.component, "frame moved", "bytes", 4)

			out := buf.String()
			for _, want := range []string{
				"level=" + tt.level,
				`msg="frame moved"`,
				"component=" + string(tt.component),
				"bytes=4",
			} {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %q", out, want)
				}
			}
		})
	}
}

func TestLogFiltering(t *testing.T) {
	buf := capture(t, slog.LevelWarn)

	if LogEnabled(slog.LevelDebug) {
		t.Error("LogEnabled(debug) = true at warn level")
	}
	LogDebug(ComponentUART, "suppressed")
	LogInfo(ComponentUART, "suppressed")
	if buf.Len() != 0 {
		t.Errorf("records emitted below warn: %s", buf.String())
	}

	SetLogLevel(slog.LevelDebug)
	if !LogEnabled(slog.LevelDebug) {
		t.Error("LogEnabled(debug) = false at debug level")
	}
	LogDebug(ComponentUART, "emitted")
	if !strings.Contains(buf.String(), "emitted") {
		t.Errorf("debug record missing after level change: %s", buf.String())
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	l.Info("usb requests paused", "component", string(ComponentBridge), "queued", 28)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if rec["msg"] != "usb requests paused" || rec["component"] != "bridge" || rec["queued"] != float64(28) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetLogFormat(t *testing.T) {
	saved := logger()
	defer SetLogger(saved)

	SetLogFormat(LogFormatJSON)
	if _, ok := logger().Handler().(*slog.JSONHandler); !ok {
		t.Errorf("handler = %T, want *slog.JSONHandler", logger().Handler())
	}
	SetLogFormat(LogFormatText)
	if _, ok := logger().Handler().(*slog.TextHandler); !ok {
		t.Errorf("handler = %T, want *slog.TextHandler", logger().Handler())
	}
}
