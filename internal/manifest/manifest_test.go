package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeManifest(t, `
[package]
name = "acme"
version = "0.3.1"
edition = "2021"

[dependencies]
serde = "1"
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "acme" || m.Version != "0.3.1" {
		t.Errorf("unexpected manifest: %+v", m)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadMissingFields(t *testing.T) {
	dir := writeManifest(t, "[package]\nname = \"acme\"\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing version")
	}

	dir = writeManifest(t, "[package]\nversion = \"0.1.0\"\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	dir := writeManifest(t, "[package\nname=")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
