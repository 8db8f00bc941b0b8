package discover

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeCrate lays out a crate under dir with the given files
// (path -> content). A Cargo.toml is written unless files carries one.
func writeCrate(t *testing.T, dir, name string, files map[string]string) {
	t.Helper()
	if _, ok := files["Cargo.toml"]; !ok {
		files["Cargo.toml"] = "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\n"
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunSingleCrate(t *testing.T) {
	root := t.TempDir()
	writeCrate(t, root, "acme", map[string]string{
		"src/lib.rs":   "pub mod m;\npub fn top() {}\n",
		"src/m.rs":     "pub mod sub;\npub fn helper() {}\n",
		"src/m/sub.rs": "pub fn deep() {}\n",
	})

	out, err := Run(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", out.Errors)
	}
	if len(out.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(out.Groups))
	}

	g := out.Groups[0]
	if g.Name != "acme" || g.Version != "0.1.0" {
		t.Errorf("group meta = %s@%s", g.Name, g.Version)
	}
	if g.Namespace.IsZero() {
		t.Error("namespace not derived")
	}
	if len(g.Files) != 3 {
		t.Fatalf("files = %v", g.Files)
	}

	wantHints := map[string]string{
		"src/lib.rs":   "crate",
		"src/m.rs":     "crate::m",
		"src/m/sub.rs": "crate::m::sub",
	}
	for file, want := range wantHints {
		got := strings.Join(g.ModuleHints[file], "::")
		if got != want {
			t.Errorf("hint for %s = %q, want %q", file, got, want)
		}
	}
}

func TestRunSiblingFailureIsolated(t *testing.T) {
	root := t.TempDir()
	writeCrate(t, root, "good", map[string]string{
		"src/lib.rs": "pub fn ok() {}\n",
	})
	// Second crate has a manifest but no src directory.
	badDir := filepath.Join(root, "bad")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "Cargo.toml"),
		[]byte("[package]\nname = \"bad\"\nversion = \"0.1.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := Run(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Groups) != 1 || out.Groups[0].Name != "good" {
		t.Fatalf("expected the good group to survive, got %+v", out.Groups)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected 1 group error, got %v", out.Errors)
	}
}

func TestRunExplicitGroupDirs(t *testing.T) {
	root := t.TempDir()
	crateDir := filepath.Join(root, "crates", "one")
	if err := os.MkdirAll(crateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeCrate(t, crateDir, "one", map[string]string{
		"src/main.rs": "fn main() {}\n",
	})

	out, err := Run(context.Background(), root, []string{"crates/one"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Groups) != 1 || out.Groups[0].Name != "one" {
		t.Fatalf("groups = %+v", out.Groups)
	}
	if got := strings.Join(out.Groups[0].ModuleHints["src/main.rs"], "::"); got != "crate" {
		t.Errorf("entry hint = %q", got)
	}
}

func TestPathFromLayout(t *testing.T) {
	cases := map[string]string{
		"src/lib.rs":      "crate",
		"src/a/b.rs":      "crate::a::b",
		"src/a/mod.rs":    "crate::a",
		"src/deep/x/y.rs": "crate::deep::x::y",
	}
	for file, want := range cases {
		if got := strings.Join(pathFromLayout(file), "::"); got != want {
			t.Errorf("pathFromLayout(%s) = %q, want %q", file, got, want)
		}
	}
}
