package graph

import (
	"log/slog"
	"strings"

	"github.com/DeusData/codegraph/internal/ident"
)

// Resolve is the sequential resolution pass. It finalizes the module
// hierarchy, resolves every pending relation against the now-complete
// node universe and emits the LogicalGraph. Ambiguity is a reported
// error, never a silent first match; targets outside the group keep a
// deterministic Synthetic identifier.
func (g ValidatedGraph) Resolve() (LogicalGraph, error) {
	out := LogicalGraph{
		nodes:     make([]Node, len(g.nodes)),
		relations: make([]Relation, 0, len(g.relations)+len(g.pending)),
	}

	// Promote every group-local identifier: nodes are born Synthetic in
	// the workers and only this pass may mark them Resolved.
	for i, n := range g.nodes {
		n.ID = n.ID.AsResolved()
		out.nodes[i] = n
	}

	seen := make(map[string]bool, len(g.relations))
	emit := func(r Relation) {
		r.Source = g.promote(r.Source)
		r.Target = g.promote(r.Target)
		if k := r.key(); !seen[k] {
			seen[k] = true
			out.relations = append(out.relations, r)
		}
	}
	for _, r := range g.relations {
		emit(r)
	}

	var unresolved int
	for _, p := range g.pending {
		r, ok, err := g.resolvePending(p)
		if err != nil {
			return LogicalGraph{}, err
		}
		if !ok {
			unresolved++
			continue
		}
		emit(r)
	}

	slog.Debug("graph.resolved",
		"nodes", len(out.nodes), "relations", len(out.relations), "dropped_refs", unresolved)
	return out, nil
}

// promote returns the Resolved form for group-local identifiers and
// leaves external Synthetic targets untouched.
func (g ValidatedGraph) promote(id ident.ID) ident.ID {
	if _, local := g.byID[id.UUID()]; local {
		return id.AsResolved()
	}
	return id
}

func (g ValidatedGraph) resolvePending(p PendingRelation) (Relation, bool, error) {
	switch p.Rule {
	case RuleModuleDecl:
		return g.resolveModuleDecl(p)
	case RuleImport:
		return g.resolveImport(p)
	case RuleTypeRef:
		return g.resolveTypeRef(p)
	}
	return Relation{}, false, nil
}

// resolveModuleDecl links `mod name;` to the module node parsed from the
// declared file. The declaration is intra-group by construction, so a
// miss is always an error.
func (g ValidatedGraph) resolveModuleDecl(p PendingRelation) (Relation, bool, error) {
	idx, err := g.lookupOne(p, ident.KindModule)
	if err != nil {
		return Relation{}, false, err
	}
	target := g.nodes[idx]
	return Relation{
		Kind:       RelDeclaresModule,
		Source:     p.Source,
		SourceKind: p.SourceKind,
		Target:     target.ID,
		TargetKind: target.Kind,
	}, true, nil
}

// resolveImport resolves a use-declaration path. Crate-local paths must
// resolve to exactly one item, the item itself rather than its
// enclosing module. Paths rooted outside the group keep a Synthetic target derived
// from the textual path.
func (g ValidatedGraph) resolveImport(p PendingRelation) (Relation, bool, error) {
	if len(p.Path) == 0 || p.Path[len(p.Path)-1] == "*" {
		// Glob imports carry no single target; the import node itself
		// records the glob.
		return Relation{}, false, nil
	}

	path, local := normalizePath(p.Path, p.SourceModule)
	if !local {
		return Relation{
			Kind:       RelImportsItem,
			Source:     p.Source,
			SourceKind: p.SourceKind,
			Target:     ident.DeriveExternal(path),
			TargetKind: ident.KindUnknown,
		}, true, nil
	}

	np := p
	np.Path = path
	idx, err := g.lookupOne(np, ident.KindUnknown)
	if err != nil {
		return Relation{}, false, err
	}
	target := g.nodes[idx]
	return Relation{
		Kind:       RelImportsItem,
		Source:     p.Source,
		SourceKind: p.SourceKind,
		Target:     target.ID,
		TargetKind: target.Kind,
	}, true, nil
}

// resolveTypeRef links a signature-level type reference. Lenient by
// design: bare names that match nothing are generic parameters or prelude
// types and are dropped; qualified external paths keep a Synthetic
// target. A qualified local path matching more than one type is a
// reported ambiguity.
func (g ValidatedGraph) resolveTypeRef(p PendingRelation) (Relation, bool, error) {
	if len(p.Path) == 0 {
		return Relation{}, false, nil
	}

	if len(p.Path) == 1 {
		name := p.Path[0]
		// Same-module first, then a unique group-wide match.
		sameModule := strings.Join(append(append([]string{}, p.SourceModule...), name), "::")
		if idxs := g.byPath[sameModule]; len(idxs) == 1 {
			return g.typeRefTo(p, idxs[0]), true, nil
		}
		if idxs := uniqueTypeLike(g, g.byName[name]); len(idxs) == 1 {
			return g.typeRefTo(p, idxs[0]), true, nil
		}
		return Relation{}, false, nil
	}

	path, local := normalizePath(p.Path, p.SourceModule)
	if !local {
		return Relation{
			Kind:       RelReferencesType,
			Source:     p.Source,
			SourceKind: p.SourceKind,
			Target:     ident.DeriveExternal(path),
			TargetKind: ident.KindUnknown,
		}, true, nil
	}
	idxs := typeLike(g, g.byPath[strings.Join(path, "::")])
	switch len(idxs) {
	case 0:
		return Relation{}, false, nil
	case 1:
		return g.typeRefTo(p, idxs[0]), true, nil
	}
	err := &UnresolvedReferenceError{
		Path: p.Path, File: p.SourceFile, Line: p.Line,
		Reason: "ambiguous: multiple matching types",
	}
	for _, i := range idxs {
		err.Candidates = append(err.Candidates, describe(g.nodes[i]))
	}
	return Relation{}, false, err
}

func (g ValidatedGraph) typeRefTo(p PendingRelation, idx int) Relation {
	target := g.nodes[idx]
	return Relation{
		Kind:       RelReferencesType,
		Source:     p.Source,
		SourceKind: p.SourceKind,
		Target:     target.ID,
		TargetKind: target.Kind,
	}
}

// lookupOne finds exactly one node for a normalized local path. Zero
// matches or an ambiguity is an UnresolvedReferenceError with every
// candidate described.
func (g ValidatedGraph) lookupOne(p PendingRelation, wantKind ident.Kind) (int, error) {
	key := strings.Join(p.Path, "::")
	idxs := g.byPath[key]
	if wantKind != ident.KindUnknown {
		var filtered []int
		for _, i := range idxs {
			if g.nodes[i].Kind == wantKind {
				filtered = append(filtered, i)
			}
		}
		idxs = filtered
	}

	switch len(idxs) {
	case 1:
		return idxs[0], nil
	case 0:
		return 0, &UnresolvedReferenceError{
			Path: p.Path, File: p.SourceFile, Line: p.Line,
			Reason: "no matching item in group",
		}
	default:
		err := &UnresolvedReferenceError{
			Path: p.Path, File: p.SourceFile, Line: p.Line,
			Reason: "ambiguous: multiple matching items",
		}
		for _, i := range idxs {
			err.Candidates = append(err.Candidates, describe(g.nodes[i]))
		}
		return 0, err
	}
}

// normalizePath rewrites self/super/crate prefixes against the source
// module. local is false when the path is rooted in a foreign crate.
func normalizePath(path, sourceModule []string) (normalized []string, local bool) {
	switch path[0] {
	case "crate":
		return path, true
	case "self":
		return append(append([]string{}, sourceModule...), path[1:]...), true
	case "super":
		base := sourceModule
		rest := path
		for len(rest) > 0 && rest[0] == "super" {
			if len(base) > 1 {
				base = base[:len(base)-1]
			}
			rest = rest[1:]
		}
		return append(append([]string{}, base...), rest...), true
	}
	return path, false
}

// typeLike filters candidates to type-introducing kinds.
func typeLike(g ValidatedGraph, idxs []int) []int {
	var out []int
	for _, i := range idxs {
		switch g.nodes[i].Kind {
		case ident.KindStruct, ident.KindEnum, ident.KindUnion, ident.KindTrait, ident.KindTypeAlias:
			out = append(out, i)
		}
	}
	return out
}

// uniqueTypeLike keeps the type-like candidates only when a single node
// remains.
func uniqueTypeLike(g ValidatedGraph, idxs []int) []int {
	out := typeLike(g, idxs)
	if len(out) != 1 {
		return nil
	}
	return out
}
