package graph

import (
	"errors"
	"testing"

	"github.com/DeusData/codegraph/internal/ident"
)

func testNamespace() ident.Namespace {
	return ident.DeriveNamespace(ident.ProjectNamespace(), "fixture", "0.1.0")
}

func makeNode(ns ident.Namespace, file string, logical []string, name string, kind ident.Kind, tokens ...string) Node {
	return Node{
		ID:          ident.Derive(ns, file, logical, name, kind, ident.ID{}),
		Kind:        kind,
		Name:        name,
		FilePath:    file,
		LogicalPath: logical,
		Hash:        ident.HashTokens(tokens),
	}
}

func TestValidateUnifiesIdenticalDuplicates(t *testing.T) {
	ns := testNamespace()
	a := makeNode(ns, "src/lib.rs", []string{"crate"}, "f", ident.KindFunction, "fn", "f")
	b := a

	g := Merge([]FileResult{
		{FilePath: "src/lib.rs", Nodes: []Node{a}},
		{FilePath: "src/lib.rs", Nodes: []Node{b}},
	})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := len(lg.Nodes()); got != 1 {
		t.Fatalf("nodes = %d, want 1 after unification", got)
	}
}

func TestValidateRejectsConflictingDuplicates(t *testing.T) {
	ns := testNamespace()
	a := makeNode(ns, "src/lib.rs", []string{"crate"}, "f", ident.KindFunction, "fn", "f", "{", "}")
	b := makeNode(ns, "src/lib.rs", []string{"crate"}, "f", ident.KindFunction, "fn", "f", "{", "1", "}")
	if !a.ID.Same(b.ID) {
		t.Fatal("fixture nodes must share an identifier")
	}

	g := Merge([]FileResult{{FilePath: "src/lib.rs", Nodes: []Node{a, b}}})
	_, err := g.Validate()
	var dup *DuplicateIdentifierError
	if !errors.As(err, &dup) {
		t.Fatalf("Validate error = %v, want DuplicateIdentifierError", err)
	}
	if dup.First.Name != "f" || dup.Second.Name != "f" {
		t.Fatalf("error lacks both descriptions: %+v", dup)
	}
}

// A use declaration naming an item inside a module must link to the item,
// never to its enclosing module.
func TestResolveImportLinksItemNotModule(t *testing.T) {
	ns := testNamespace()
	crate := makeNode(ns, "src/lib.rs", []string{}, "crate", ident.KindModule, "mod")
	mod := makeNode(ns, "src/m.rs", []string{"crate"}, "m", ident.KindModule, "mod", "m")
	fn := makeNode(ns, "src/m.rs", []string{"crate", "m"}, "f", ident.KindFunction, "fn", "f")
	imp := makeNode(ns, "src/lib.rs", []string{"crate"}, "f", ident.KindImport, "use")

	g := Merge([]FileResult{
		{FilePath: "src/lib.rs", Nodes: []Node{crate, imp}, Pending: []PendingRelation{{
			Source:       imp.ID,
			SourceKind:   ident.KindImport,
			SourceFile:   "src/lib.rs",
			SourceModule: []string{"crate"},
			Path:         []string{"crate", "m", "f"},
			Rule:         RuleImport,
		}}},
		{FilePath: "src/m.rs", Nodes: []Node{mod, fn}},
	})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var found bool
	for _, r := range lg.Relations() {
		if r.Kind != RelImportsItem {
			continue
		}
		found = true
		if !r.Target.Same(fn.ID) {
			t.Fatalf("import target = %s, want function %s", r.Target, fn.ID)
		}
		if r.Target.Same(mod.ID) {
			t.Fatal("import resolved to the enclosing module")
		}
		if r.TargetKind != ident.KindFunction {
			t.Fatalf("target kind = %s, want function", r.TargetKind)
		}
	}
	if !found {
		t.Fatal("no IMPORTS_ITEM relation emitted")
	}
}

func TestResolveModuleDecl(t *testing.T) {
	ns := testNamespace()
	crate := makeNode(ns, "src/lib.rs", []string{}, "crate", ident.KindModule, "mod", "m", ";")
	mod := makeNode(ns, "src/m.rs", []string{"crate"}, "m", ident.KindModule, "fn", "f")

	g := Merge([]FileResult{
		{FilePath: "src/lib.rs", Nodes: []Node{crate}, Pending: []PendingRelation{{
			Source:       crate.ID,
			SourceKind:   ident.KindModule,
			SourceFile:   "src/lib.rs",
			SourceModule: []string{"crate"},
			Path:         []string{"crate", "m"},
			Rule:         RuleModuleDecl,
		}}},
		{FilePath: "src/m.rs", Nodes: []Node{mod}},
	})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var found bool
	for _, r := range lg.Relations() {
		if r.Kind == RelDeclaresModule {
			found = true
			if !r.Target.Same(mod.ID) {
				t.Fatalf("declares target = %s, want %s", r.Target, mod.ID)
			}
		}
	}
	if !found {
		t.Fatal("no DECLARES_MODULE relation emitted")
	}
}

func TestResolveAmbiguousImport(t *testing.T) {
	ns := testNamespace()
	// Same path key from two distinct files, differing content: distinct
	// identifiers, ambiguous path.
	a := makeNode(ns, "src/a.rs", []string{"crate"}, "thing", ident.KindStruct, "struct", "thing", "a")
	b := makeNode(ns, "src/b.rs", []string{"crate"}, "thing", ident.KindFunction, "fn", "thing", "b")
	imp := makeNode(ns, "src/lib.rs", []string{"crate"}, "thing", ident.KindImport, "use")

	g := Merge([]FileResult{
		{FilePath: "src/a.rs", Nodes: []Node{a}},
		{FilePath: "src/b.rs", Nodes: []Node{b}},
		{FilePath: "src/lib.rs", Nodes: []Node{imp}, Pending: []PendingRelation{{
			Source:       imp.ID,
			SourceKind:   ident.KindImport,
			SourceFile:   "src/lib.rs",
			SourceModule: []string{"crate"},
			Path:         []string{"crate", "thing"},
			Rule:         RuleImport,
		}}},
	})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	_, err = v.Resolve()
	var unres *UnresolvedReferenceError
	if !errors.As(err, &unres) {
		t.Fatalf("Resolve error = %v, want UnresolvedReferenceError", err)
	}
	if len(unres.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(unres.Candidates))
	}
}

func TestResolveExternalImportStaysSynthetic(t *testing.T) {
	ns := testNamespace()
	crate := makeNode(ns, "src/lib.rs", []string{}, "crate", ident.KindModule)
	imp := makeNode(ns, "src/lib.rs", []string{"crate"}, "HashMap", ident.KindImport, "use")
	path := []string{"std", "collections", "HashMap"}

	g := Merge([]FileResult{
		{FilePath: "src/lib.rs", Nodes: []Node{crate, imp}, Pending: []PendingRelation{{
			Source:       imp.ID,
			SourceKind:   ident.KindImport,
			SourceFile:   "src/lib.rs",
			SourceModule: []string{"crate"},
			Path:         path,
			Rule:         RuleImport,
		}}},
	})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := ident.DeriveExternal(path)
	var found bool
	for _, r := range lg.Relations() {
		if r.Kind == RelImportsItem {
			found = true
			if !r.Target.IsSynthetic() {
				t.Fatal("external target was promoted to Resolved")
			}
			if !r.Target.Same(want) {
				t.Fatalf("external target = %s, want %s", r.Target, want)
			}
		}
	}
	if !found {
		t.Fatal("no IMPORTS_ITEM relation emitted")
	}
}

func TestResolvePromotesLocalIdentifiers(t *testing.T) {
	ns := testNamespace()
	mod := makeNode(ns, "src/lib.rs", []string{}, "crate", ident.KindModule)
	fn := makeNode(ns, "src/lib.rs", []string{"crate"}, "f", ident.KindFunction, "fn", "f")
	rel, _ := Containment(ident.ModuleID{ID: mod.ID}, ident.FunctionID{ID: fn.ID})

	g := Merge([]FileResult{{
		FilePath:  "src/lib.rs",
		Nodes:     []Node{mod, fn},
		Relations: []Relation{rel},
	}})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for _, n := range lg.Nodes() {
		if n.ID.IsSynthetic() {
			t.Fatalf("node %s kept a Synthetic identifier", n.Name)
		}
	}
	for _, r := range lg.Relations() {
		if r.Source.IsSynthetic() || r.Target.IsSynthetic() {
			t.Fatalf("relation %s kept Synthetic endpoints", r.Kind)
		}
	}
}

func TestResolveTypeRefs(t *testing.T) {
	ns := testNamespace()
	st := makeNode(ns, "src/lib.rs", []string{"crate"}, "Point", ident.KindStruct, "struct", "Point")
	fn := makeNode(ns, "src/lib.rs", []string{"crate"}, "norm", ident.KindFunction, "fn", "norm")

	pending := []PendingRelation{
		{
			Source: fn.ID, SourceKind: ident.KindFunction,
			SourceFile: "src/lib.rs", SourceModule: []string{"crate"},
			Path: []string{"Point"}, Rule: RuleTypeRef,
		},
		// Generic parameter: matches nothing, silently dropped.
		{
			Source: fn.ID, SourceKind: ident.KindFunction,
			SourceFile: "src/lib.rs", SourceModule: []string{"crate"},
			Path: []string{"T"}, Rule: RuleTypeRef,
		},
	}
	g := Merge([]FileResult{{FilePath: "src/lib.rs", Nodes: []Node{st, fn}, Pending: pending}})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var refs int
	for _, r := range lg.Relations() {
		if r.Kind == RelReferencesType {
			refs++
			if !r.Target.Same(st.ID) {
				t.Fatalf("type ref target = %s, want %s", r.Target, st.ID)
			}
		}
	}
	if refs != 1 {
		t.Fatalf("REFERENCES_TYPE relations = %d, want 1", refs)
	}
}

// The typed constructors must agree with the containment table: same
// relation kind, same endpoints.
func TestTypedConstructorsMatchContainmentTable(t *testing.T) {
	ns := testNamespace()
	id := func(name string, kind ident.Kind) ident.ID {
		return ident.Derive(ns, "src/lib.rs", []string{"crate"}, name, kind, ident.ID{})
	}
	strukt := ident.StructID{ID: id("Point", ident.KindStruct)}
	union := ident.UnionID{ID: id("Raw", ident.KindUnion)}
	enum := ident.EnumID{ID: id("Shape", ident.KindEnum)}
	variant := ident.VariantID{ID: id("Circle", ident.KindVariant)}
	impl := ident.ImplID{ID: id("impl Point", ident.KindImpl)}
	trait := ident.TraitID{ID: id("Draw", ident.KindTrait)}
	method := ident.MethodID{ID: id("norm", ident.KindMethod)}
	field := ident.FieldID{ID: id("x", ident.KindField)}
	parentMod := ident.ModuleID{ID: id("crate", ident.KindModule)}
	childMod := ident.ModuleID{ID: id("inner", ident.KindModule)}

	cases := []struct {
		name          string
		rel           Relation
		parent, child ident.Typed
	}{
		{"struct field", StructField(strukt, field), strukt, field},
		{"union field", UnionField(union, field), union, field},
		{"enum variant", EnumVariant(enum, variant), enum, variant},
		{"variant field", VariantField(variant, field), variant, field},
		{"impl method", ImplMethod(impl, method), impl, method},
		{"trait item", TraitItem(trait, method), trait, method},
		{"module submodule", ModuleSubmodule(parentMod, childMod), parentMod, childMod},
	}
	for _, tc := range cases {
		want, ok := Containment(tc.parent, tc.child)
		if !ok {
			t.Fatalf("%s: pair missing from containment table", tc.name)
		}
		if tc.rel != want {
			t.Fatalf("%s: constructor = %+v, table = %+v", tc.name, tc.rel, want)
		}
	}
}

// A qualified crate-local type reference with multiple equally valid type
// targets must be reported, not silently dropped.
func TestResolveQualifiedTypeRefAmbiguity(t *testing.T) {
	ns := testNamespace()
	crate := makeNode(ns, "src/lib.rs", []string{}, "crate", ident.KindModule, "mod")
	a := makeNode(ns, "src/a.rs", []string{"crate"}, "Config", ident.KindStruct, "struct", "Config")
	b := makeNode(ns, "src/b.rs", []string{"crate"}, "Config", ident.KindTypeAlias, "type", "Config")
	user := makeNode(ns, "src/lib.rs", []string{"crate"}, "load", ident.KindFunction, "fn", "load")

	g := Merge([]FileResult{{
		FilePath: "src/lib.rs",
		Nodes:    []Node{crate, a, b, user},
		Pending: []PendingRelation{{
			Source:       user.ID,
			SourceKind:   ident.KindFunction,
			SourceFile:   "src/lib.rs",
			SourceModule: []string{"crate"},
			Path:         []string{"crate", "Config"},
			Rule:         RuleTypeRef,
		}},
	}})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	_, err = v.Resolve()
	var unres *UnresolvedReferenceError
	if !errors.As(err, &unres) {
		t.Fatalf("Resolve error = %v, want UnresolvedReferenceError", err)
	}
	if len(unres.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(unres.Candidates))
	}
}

// A qualified local path shared by a type and a non-type item resolves to
// the type; the non-type candidate never counts toward ambiguity.
func TestResolveQualifiedTypeRefFiltersNonTypes(t *testing.T) {
	ns := testNamespace()
	crate := makeNode(ns, "src/lib.rs", []string{}, "crate", ident.KindModule, "mod")
	strukt := makeNode(ns, "src/lib.rs", []string{"crate"}, "Config", ident.KindStruct, "struct", "Config")
	fn := makeNode(ns, "src/lib.rs", []string{"crate"}, "Config", ident.KindFunction, "fn", "Config")
	user := makeNode(ns, "src/lib.rs", []string{"crate"}, "load", ident.KindFunction, "fn", "load")

	g := Merge([]FileResult{{
		FilePath: "src/lib.rs",
		Nodes:    []Node{crate, strukt, fn, user},
		Pending: []PendingRelation{{
			Source:       user.ID,
			SourceKind:   ident.KindFunction,
			SourceFile:   "src/lib.rs",
			SourceModule: []string{"crate"},
			Path:         []string{"crate", "Config"},
			Rule:         RuleTypeRef,
		}},
	}})
	v, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lg, err := v.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, r := range lg.Relations() {
		if r.Kind == RelReferencesType {
			if !r.Target.Same(strukt.ID) {
				t.Fatalf("type ref target = %s, want the struct", r.Target)
			}
			return
		}
	}
	t.Fatal("no REFERENCES_TYPE relation emitted")
}
