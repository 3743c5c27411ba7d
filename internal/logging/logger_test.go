package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerRendersAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&syncWriter{writer: &buf}, slog.LevelInfo)
	logger := slog.New(handler).With(String(FieldComponent, "store"))

	logger.Info("allocation saved", Int64(FieldSampleID, 7), Int("tags", 4))

	line := buf.String()
	for _, want := range []string{"INFO", "allocation saved", "component=store", "sample_id=7", "tags=4"} {
		if !strings.Contains(line, want) {
			t.Fatalf("output %q missing %q", line, want)
		}
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&syncWriter{writer: &buf}, slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextCarriesIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	base := slog.New(handler)

	ctx := ContextWithUserID(context.Background(), 42)
	ctx = ContextWithRequestID(ctx, "req-1")
	WithContext(ctx, base).Info("hello")

	line := buf.String()
	for _, want := range []string{`"user_id":42`, `"request_id":"req-1"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("output %q missing %q", line, want)
		}
	}
}

func TestWithContextPassesThroughBareContext(t *testing.T) {
	base := NewNop()
	if got := WithContext(context.Background(), base); got != base {
		t.Fatal("expected the original logger back for a bare context")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Fatalf("parseLevel = %v, want info", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel = %v, want debug", got)
	}
}
