package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "" || cfg.Workers != 0 || len(cfg.Crates) != 0 {
		t.Fatalf("missing file should yield zero config, got %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
db_path: /tmp/graph.db
workers: 4
crates:
  - crates/core
  - crates/io
ignore_dirs:
  - vendor
watch: true
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/graph.db" || cfg.Workers != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Crates) != 2 || cfg.Crates[1] != "crates/io" {
		t.Fatalf("crates = %v", cfg.Crates)
	}
	if len(cfg.IgnoreDirs) != 1 || cfg.IgnoreDirs[0] != "vendor" {
		t.Fatalf("ignore_dirs = %v", cfg.IgnoreDirs)
	}
	if !cfg.Watch {
		t.Fatal("watch not set")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("workers: [nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("malformed YAML loaded without error")
	}
}
