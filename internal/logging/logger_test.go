package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"substream/internal/services"
)

func TestConsoleHandlerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("pipeline started", String("media_id", "abc"), Int("files", 3))

	out := buf.String()
	if !strings.Contains(out, "pipeline started") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "media_id=abc") || !strings.Contains(out, "files=3") {
		t.Fatalf("expected attrs in output, got %q", out)
	}
}

func TestJSONHandlerLowercasesLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, levelVar))

	logger.Warn("slow step")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log record: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts field in json record")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	base := slog.New(newConsoleHandler(&buf, levelVar))

	ctx := services.WithMediaID(context.Background(), "m-1")
	ctx = services.WithStep(ctx, "reconcile")

	WithContext(ctx, base).Info("step done")

	out := buf.String()
	if !strings.Contains(out, "media_id=m-1") || !strings.Contains(out, "step=reconcile") {
		t.Fatalf("expected context fields in output, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
