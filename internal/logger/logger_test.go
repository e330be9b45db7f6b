package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultIsSilent(t *testing.T) {
	if Get().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger must be disabled")
	}
}

func TestSetAndReset(t *testing.T) {
	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { Set(nil) })

	Get().Info("hello", "k", 1)
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("record not written: %q", buf.String())
	}

	Set(nil)
	if Get().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("Set(nil) must restore the silent logger")
	}
}
