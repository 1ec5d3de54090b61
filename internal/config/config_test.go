package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config file")
	}
	if cfg.Store.Database != "substream" {
		t.Fatalf("expected default database, got %q", cfg.Store.Database)
	}
	if cfg.Workflow.BatchWidth != 1 {
		t.Fatalf("expected default batch width 1, got %d", cfg.Workflow.BatchWidth)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[store]
uri = "mongodb://db:27017"
database = "library"

[workflow]
workers = 4
batch_width = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Store.URI != "mongodb://db:27017" || cfg.Store.Database != "library" {
		t.Fatalf("store overrides not applied: %+v", cfg.Store)
	}
	if cfg.Workflow.Workers != 4 || cfg.Workflow.BatchWidth != 3 {
		t.Fatalf("workflow overrides not applied: %+v", cfg.Workflow)
	}
	// Unset sections keep defaults.
	if cfg.TMDB.BaseURL == "" {
		t.Fatal("expected default tmdb base url to survive override load")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Workflow.Workers = 0
	cfg.Store.URI = " "
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "workflow.workers") || !strings.Contains(err.Error(), "store.uri") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/media")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "media") {
		t.Fatalf("expected home expansion, got %q", got)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected error writing over existing config")
	}
}
