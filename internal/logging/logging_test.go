package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "debug", Format: "json"})

	log.With(String("component", "scene")).Info(context.Background(), "epoch replaced",
		Int("spikes", 8), Float("aspect", 1.5), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "epoch replaced" || rec["component"] != "scene" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["spikes"] != float64(8) || rec["error"] != "boom" {
		t.Fatalf("fields missing: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "warn"})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filtering wrong: %q", buf.String())
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "globe.log")
	log, closer, err := New(Config{File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Error(context.Background(), "to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestWithSceneLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, Config{Format: "json"})

	ctx, log := WithSceneLogger(context.Background(), base)
	id := SceneIDFromContext(ctx)
	if id == "" {
		t.Fatalf("scene id not set on context")
	}
	log.Info(ctx, "mounted")
	if !strings.Contains(buf.String(), id) {
		t.Fatalf("record missing scene id %q: %q", id, buf.String())
	}

	// An existing id is kept.
	ctx2, _ := WithSceneLogger(ctx, base)
	if got := SceneIDFromContext(ctx2); got != id {
		t.Fatalf("scene id changed: %q -> %q", id, got)
	}
}

func TestRecorderKeepsInheritedFields(t *testing.T) {
	rec := NewRecorder()
	scoped := rec.With(String("scene_id", "abc"))
	scoped.Warn(context.Background(), "globe texture load failed", Err(errors.New("404")))
	rec.Info(context.Background(), "scene mounted", Duration("took", 2*time.Millisecond))

	if n := len(rec.Entries()); n != 2 {
		t.Fatalf("entries = %d, want 2", n)
	}
	warns := rec.Find(slog.LevelWarn, "texture")
	if len(warns) != 1 {
		t.Fatalf("warn entries = %d, want 1", len(warns))
	}
	if v, ok := warns[0].Field("scene_id"); !ok || v != "abc" {
		t.Fatalf("scene_id = %v, %v", v, ok)
	}
	if v, _ := warns[0].Field("error"); v != "404" {
		t.Fatalf("error field = %v, want 404", v)
	}
	if len(rec.Find(slog.LevelWarn, "mounted")) != 0 {
		t.Fatalf("Find matched an info record at warn level")
	}
}
