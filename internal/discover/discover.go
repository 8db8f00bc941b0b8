// Package discover enumerates translation-unit groups (crates), derives
// their namespaces and builds the coarse initial module-path map that
// seeds resolution. Discovery is single-threaded; its output is read-only
// context for the parallel parse stage.
package discover

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/DeusData/codegraph/internal/ident"
	"github.com/DeusData/codegraph/internal/manifest"
)

// ignoreDirs are directory names skipped while locating group roots and
// walking sources.
var ignoreDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, ".idea": true,
	".vscode": true, "target": true, "node_modules": true, ".cache": true,
}

// Group is one discovered translation-unit group: a crate with a parsed
// manifest, a derived namespace, its source files and initial module-path
// hints.
type Group struct {
	Name      string
	Version   string
	Namespace ident.Namespace
	RootPath  string   // absolute crate root (holds Cargo.toml)
	Files     []string // file paths relative to RootPath, sorted
	// ModuleHints maps a relative file path to its anticipated logical
	// module path (e.g. "src/m/sub.rs" -> ["crate","m","sub"]). Built from
	// mod declarations and file layout; non-authoritative until resolution.
	ModuleHints map[string][]string
}

// Error reports a failure for one group without affecting its siblings.
type Error struct {
	GroupRoot string
	Err       error
}

func (e *Error) Error() string { return fmt.Sprintf("discover %s: %v", e.GroupRoot, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Output carries every successfully discovered group plus per-group
// failures.
type Output struct {
	Groups []Group
	Errors []*Error
}

// Options configures discovery.
type Options struct {
	// ExtraIgnoreDirs supplements the built-in ignore set.
	ExtraIgnoreDirs []string
}

// Run discovers groups. When groupDirs is empty the project root is
// scanned for every directory containing a Cargo.toml.
func Run(ctx context.Context, projectRoot string, groupDirs []string, opts *Options) (Output, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return Output{}, err
	}

	skip := make(map[string]bool, len(ignoreDirs))
	for d := range ignoreDirs {
		skip[d] = true
	}
	if opts != nil {
		for _, d := range opts.ExtraIgnoreDirs {
			skip[d] = true
		}
	}

	if len(groupDirs) == 0 {
		groupDirs, err = findGroupRoots(ctx, root, skip)
		if err != nil {
			return Output{}, err
		}
	}

	var out Output
	for _, dir := range groupDirs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		abs := dir
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, dir)
		}
		g, gerr := discoverGroup(abs, skip)
		if gerr != nil {
			out.Errors = append(out.Errors, &Error{GroupRoot: abs, Err: gerr})
			continue
		}
		out.Groups = append(out.Groups, g)
	}

	slog.Info("discover.done", "groups", len(out.Groups), "errors", len(out.Errors))
	return out, nil
}

// findGroupRoots walks the project tree for directories holding a
// Cargo.toml.
func findGroupRoots(ctx context.Context, root string, skip map[string]bool) ([]string, error) {
	var roots []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return filepath.SkipDir
		}
		if d.IsDir() {
			if path != root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == manifest.FileName {
			roots = append(roots, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(roots)
	return roots, nil
}

// discoverGroup resolves one group: manifest, namespace, source files and
// module hints.
func discoverGroup(rootPath string, skip map[string]bool) (Group, error) {
	m, err := manifest.Load(rootPath)
	if err != nil {
		return Group{}, err
	}

	srcDir := filepath.Join(rootPath, "src")
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return Group{}, fmt.Errorf("source directory not found: %s", srcDir)
	}

	var files []string
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".rs" {
			return nil
		}
		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return Group{}, fmt.Errorf("walk %s: %w", srcDir, err)
	}
	sort.Strings(files)

	g := Group{
		Name:        m.Name,
		Version:     m.Version,
		Namespace:   ident.DeriveNamespace(ident.ProjectNamespace(), m.Name, m.Version),
		RootPath:    rootPath,
		Files:       files,
		ModuleHints: buildModuleHints(rootPath, files),
	}
	return g, nil
}

var modDeclRe = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+([A-Za-z_][A-Za-z0-9_]*)\s*;`)

// buildModuleHints maps each file to its anticipated logical path. Entry
// files map to ["crate"]; other files get their path from mod declarations
// reachable from the entry points, falling back to the file layout. The
// result is a hint only: resolution finalizes the tree once inline modules
// are known.
func buildModuleHints(rootPath string, files []string) map[string][]string {
	fileSet := make(map[string]bool, len(files))
	for _, f := range files {
		fileSet[f] = true
	}

	hints := make(map[string][]string, len(files))
	type queued struct {
		file string
		path []string
	}
	var queue []queued
	for _, entry := range []string{"src/lib.rs", "src/main.rs"} {
		if fileSet[entry] {
			queue = append(queue, queued{file: entry, path: []string{"crate"}})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := hints[cur.file]; seen {
			continue
		}
		hints[cur.file] = cur.path

		for _, name := range scanModDecls(filepath.Join(rootPath, filepath.FromSlash(cur.file))) {
			child := resolveModFile(cur.file, name, fileSet)
			if child == "" {
				continue
			}
			childPath := append(append([]string{}, cur.path...), name)
			queue = append(queue, queued{file: child, path: childPath})
		}
	}

	// Files not reachable from an entry point still get a deterministic
	// path derived from the layout.
	for _, f := range files {
		if _, ok := hints[f]; !ok {
			hints[f] = pathFromLayout(f)
		}
	}
	return hints
}

// scanModDecls shallow-scans one file for `mod name;` declarations.
func scanModDecls(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var mods []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := modDeclRe.FindStringSubmatch(scanner.Text()); m != nil {
			mods = append(mods, m[1])
		}
	}
	return mods
}

// resolveModFile maps `mod name;` in declFile to name.rs or name/mod.rs.
func resolveModFile(declFile, name string, fileSet map[string]bool) string {
	dir := filepath.ToSlash(filepath.Dir(declFile))
	base := strings.TrimSuffix(filepath.Base(declFile), ".rs")
	// mod.rs and the entry files declare siblings; foo.rs declares
	// foo/bar.rs.
	if base != "mod" && base != "lib" && base != "main" {
		dir = dir + "/" + base
	}
	for _, cand := range []string{dir + "/" + name + ".rs", dir + "/" + name + "/mod.rs"} {
		if fileSet[cand] {
			return cand
		}
	}
	return ""
}

// pathFromLayout derives "src/a/b.rs" -> ["crate","a","b"].
func pathFromLayout(relFile string) []string {
	trimmed := strings.TrimPrefix(relFile, "src/")
	trimmed = strings.TrimSuffix(trimmed, ".rs")
	path := []string{"crate"}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "mod" || seg == "lib" || seg == "main" {
			continue
		}
		path = append(path, seg)
	}
	return path
}
