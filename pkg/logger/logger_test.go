package logger

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
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInitJSONWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: "json", Output: &buf})

	slog.Info("record created", "kind", "contract")

	if !strings.Contains(buf.String(), `"msg":"record created"`) {
		t.Errorf("Expected JSON log line, got %q", buf.String())
	}

	buf.Reset()
	slog.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug to be filtered at info level, got %q", buf.String())
	}
}

func TestWithContextAttachesKeys(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "text", Output: &buf})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UsernameKey, "anrielly")
	ctx = WithRecord(ctx, "rec-42")

	Info(ctx, "transition applied")

	out := buf.String()
	for _, want := range []string{"request_id=req-1", "username=anrielly", "record_id=rec-42"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output %q", want, out)
		}
	}
}

func TestWithContextNil(t *testing.T) {
	//nolint:staticcheck // nil context is tolerated on purpose
	if WithContext(nil) == nil {
		t.Error("Expected non-nil logger")
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "text", Output: &buf})

	ctx := context.Background()

	cases := []struct {
		log func(context.Context, string, ...any)
		msg string
	}{
		{Info, "info message"},
		{Debug, "debug message"},
		{Warn, "warn message"},
		{Error, "error message"},
	}

	for _, c := range cases {
		buf.Reset()
		c.log(ctx, c.msg, "key", "value")
		if !strings.Contains(buf.String(), c.msg) {
			t.Errorf("Expected %q in log, got %q", c.msg, buf.String())
		}
	}
}
