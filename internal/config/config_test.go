package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.DBPath == "" {
		t.Error("default db path must not be empty")
	}
	if cfg.SaveDelay() != 300*time.Millisecond {
		t.Errorf("save delay: %v", cfg.SaveDelay())
	}
	if cfg.MetaSaveDelay() != time.Second {
		t.Errorf("meta save delay: %v", cfg.MetaSaveDelay())
	}
	if cfg.DefaultNoteDepth != 4 {
		t.Errorf("note depth: %v", cfg.DefaultNoteDepth)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.SaveDelayMS != 300 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "db_path: /tmp/test.db\nsave_delay_ms: 150\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("db path: %q", cfg.DBPath)
	}
	if cfg.SaveDelay() != 150*time.Millisecond {
		t.Errorf("save delay: %v", cfg.SaveDelay())
	}
	// Unset fields keep their defaults.
	if cfg.MetaSaveDelayMS != 1000 || cfg.DefaultNoteDepth != 4 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadClampsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "save_delay_ms: -5\nmeta_save_delay_ms: 0\ndefault_note_depth: -1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SaveDelayMS != 300 || cfg.MetaSaveDelayMS != 1000 || cfg.DefaultNoteDepth != 4 {
		t.Errorf("bad values not clamped: %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
