package visitor

import (
	"strings"
	"testing"

	"github.com/DeusData/codegraph/internal/astparse"
	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/ident"
)

const sampleSource = `
mod helpers;

use crate::helpers::load;
use std::fmt::Debug as Dbg;
use crate::helpers::*;

pub struct Point {
    pub x: f64,
    pub y: f64,
}

impl Point {
    pub fn norm(&self) -> f64 { 0.0 }
}

pub mod inner {
    pub fn run() {}
}

pub fn origin() -> Point { Point { x: 0.0, y: 0.0 } }
`

func visitSample(t *testing.T) graph.FileResult {
	t.Helper()
	src, err := astparse.Parse("src/lib.rs", []byte(sampleSource))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ns := ident.DeriveNamespace(ident.ProjectNamespace(), "fixture", "0.1.0")
	return VisitFile(ns, "src/lib.rs", []string{"crate"}, src)
}

func findNode(r graph.FileResult, kind ident.Kind, name string) (graph.Node, bool) {
	for _, n := range r.Nodes {
		if n.Kind == kind && n.Name == name {
			return n, true
		}
	}
	return graph.Node{}, false
}

func TestVisitFileModuleNode(t *testing.T) {
	r := visitSample(t)
	if len(r.Nodes) == 0 {
		t.Fatal("no nodes produced")
	}
	root := r.Nodes[0]
	if root.Kind != ident.KindModule || root.Name != "crate" {
		t.Fatalf("first node = %s %q, want the file module", root.Kind, root.Name)
	}
	if len(root.LogicalPath) != 0 {
		t.Fatalf("file module logical path = %v, want empty", root.LogicalPath)
	}
	if root.Hash.IsZero() {
		t.Fatal("file module has no tracking hash")
	}
}

// `mod helpers;` declares a module parsed from another file: the visitor
// must defer the link instead of inventing a node for a path another
// file's module already owns.
func TestVisitModuleDeclaration(t *testing.T) {
	r := visitSample(t)
	if _, ok := findNode(r, ident.KindModule, "helpers"); ok {
		t.Fatal("module declaration minted a node")
	}
	var decls int
	for _, p := range r.Pending {
		if p.Rule == graph.RuleModuleDecl {
			decls++
			if got := strings.Join(p.Path, "::"); got != "crate::helpers" {
				t.Fatalf("declaration path = %q, want crate::helpers", got)
			}
		}
	}
	if decls != 1 {
		t.Fatalf("module declaration pendings = %d, want 1", decls)
	}
}

func TestVisitInlineModule(t *testing.T) {
	r := visitSample(t)
	inner, ok := findNode(r, ident.KindModule, "inner")
	if !ok {
		t.Fatal("inline module node missing")
	}
	run, ok := findNode(r, ident.KindFunction, "run")
	if !ok {
		t.Fatal("function inside inline module missing")
	}
	if got := strings.Join(run.LogicalPath, "::"); got != "crate::inner" {
		t.Fatalf("nested function path = %q, want crate::inner", got)
	}

	var sub, fn bool
	for _, rel := range r.Relations {
		if rel.Kind == graph.RelModuleSubmodule && rel.Target.Same(inner.ID) {
			sub = true
		}
		if rel.Kind == graph.RelModuleFunction && rel.Source.Same(inner.ID) && rel.Target.Same(run.ID) {
			fn = true
		}
	}
	if !sub || !fn {
		t.Fatalf("containment edges missing: submodule=%v function=%v", sub, fn)
	}
}

func TestVisitImports(t *testing.T) {
	r := visitSample(t)

	var imports []graph.Node
	for _, n := range r.Nodes {
		if n.Kind == ident.KindImport {
			imports = append(imports, n)
		}
	}
	if len(imports) != 3 {
		t.Fatalf("import nodes = %d, want 3", len(imports))
	}

	var pendings int
	for _, p := range r.Pending {
		if p.Rule == graph.RuleImport {
			pendings++
		}
	}
	// The glob import carries no pending link.
	if pendings != 2 {
		t.Fatalf("import pendings = %d, want 2", pendings)
	}

	aliased, ok := findNode(r, ident.KindImport, "Dbg")
	if !ok {
		t.Fatal("aliased import not named by its alias")
	}
	if aliased.Payload["alias"] != "Dbg" || aliased.Payload["path"] != "std::fmt::Debug" {
		t.Fatalf("aliased import payload = %v", aliased.Payload)
	}
}

func TestVisitStructAndFields(t *testing.T) {
	r := visitSample(t)
	point, ok := findNode(r, ident.KindStruct, "Point")
	if !ok {
		t.Fatal("struct node missing")
	}
	x, ok := findNode(r, ident.KindField, "x")
	if !ok {
		t.Fatal("field node missing")
	}
	if got := strings.Join(x.LogicalPath, "::"); got != "crate::Point" {
		t.Fatalf("field path = %q, want crate::Point", got)
	}

	var edge bool
	for _, rel := range r.Relations {
		if rel.Kind == graph.RelStructField && rel.Source.Same(point.ID) && rel.Target.Same(x.ID) {
			edge = true
		}
	}
	if !edge {
		t.Fatal("STRUCT_FIELD edge missing")
	}
}

func TestVisitImplMethods(t *testing.T) {
	r := visitSample(t)
	impl, ok := findNode(r, ident.KindImpl, "impl Point")
	if !ok {
		t.Fatal("impl node missing")
	}
	if impl.Payload["self_type"] != "Point" {
		t.Fatalf("impl payload = %v", impl.Payload)
	}
	norm, ok := findNode(r, ident.KindMethod, "norm")
	if !ok {
		t.Fatal("method node missing")
	}
	if got := strings.Join(norm.LogicalPath, "::"); got != "crate::Point" {
		t.Fatalf("method path = %q, want crate::Point", got)
	}

	var edge bool
	for _, rel := range r.Relations {
		if rel.Kind == graph.RelImplMethod && rel.Source.Same(impl.ID) && rel.Target.Same(norm.ID) {
			edge = true
		}
	}
	if !edge {
		t.Fatal("IMPL_METHOD edge missing")
	}
}

func TestVisitTypeRefPendings(t *testing.T) {
	r := visitSample(t)
	var pointRefs int
	for _, p := range r.Pending {
		if p.Rule == graph.RuleTypeRef && strings.Join(p.Path, "::") == "Point" {
			pointRefs++
		}
	}
	if pointRefs == 0 {
		t.Fatal("no type-reference pending for Point")
	}
}

func TestVisitDeterministic(t *testing.T) {
	a := visitSample(t)
	b := visitSample(t)
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if !a.Nodes[i].ID.Same(b.Nodes[i].ID) {
			t.Fatalf("node %d identifier differs between runs", i)
		}
		if a.Nodes[i].Hash != b.Nodes[i].Hash {
			t.Fatalf("node %d tracking hash differs between runs", i)
		}
	}
	for i := range a.Pending {
		if strings.Join(a.Pending[i].Path, "::") != strings.Join(b.Pending[i].Path, "::") {
			t.Fatalf("pending %d differs between runs", i)
		}
	}
}

// A file with no module-path hint still produces a well-formed crate-root
// module node instead of panicking.
func TestVisitFileEmptyHintDefaultsToCrate(t *testing.T) {
	src, err := astparse.Parse("src/extra.rs", []byte("pub fn stray() {}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ns := ident.DeriveNamespace(ident.ProjectNamespace(), "fixture", "0.1.0")
	r := VisitFile(ns, "src/extra.rs", nil, src)

	root := r.Nodes[0]
	if root.Kind != ident.KindModule || root.Name != "crate" {
		t.Fatalf("root node = %s %s, want module crate", root.Kind, root.Name)
	}
	fn, ok := findNode(r, ident.KindFunction, "stray")
	if !ok {
		t.Fatal("function node missing")
	}
	if got := strings.Join(fn.LogicalPath, "::"); got != "crate" {
		t.Fatalf("function logical path = %q, want crate", got)
	}
}
