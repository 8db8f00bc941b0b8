// Package visitor walks one file's item list and produces that file's
// share of the graph. Every instance is file-local by design: it shares
// no state with, and never blocks on, any concurrently running instance.
// Anything requiring cross-file knowledge becomes a PendingRelation for
// the sequential resolution pass.
package visitor

import (
	"strings"

	"github.com/DeusData/codegraph/internal/astparse"
	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/ident"
)

// VisitFile builds the FileResult for one parsed file. logicalPath is the
// file's module path hint from discovery (e.g. ["crate","m"]); an empty
// hint defaults to the crate root.
func VisitFile(ns ident.Namespace, filePath string, logicalPath []string, src *astparse.SourceFile) graph.FileResult {
	if len(logicalPath) == 0 {
		logicalPath = []string{"crate"}
	}
	v := &fileVisitor{
		ns:       ns,
		filePath: filePath,
		result:   graph.FileResult{FilePath: filePath},
	}

	// The file itself is a module node; its tracking hash covers the
	// whole file's token stream.
	modName := logicalPath[len(logicalPath)-1]
	parentPath := logicalPath[:len(logicalPath)-1]
	modID := ident.Derive(ns, filePath, parentPath, modName, ident.KindModule, ident.ID{})
	fileMod := graph.Node{
		ID:          modID,
		Kind:        ident.KindModule,
		Name:        modName,
		FilePath:    filePath,
		LogicalPath: append([]string{}, parentPath...),
		Hash:        ident.HashTokens(allTokens(src.Items)),
		Vis:         string(astparse.VisPublic),
	}
	if len(src.Items) > 0 {
		fileMod.StartLine = src.Items[0].Span.StartLine
		fileMod.EndLine = src.Items[len(src.Items)-1].Span.EndLine
	}
	v.result.Nodes = append(v.result.Nodes, fileMod)

	scope := scopeFrame{
		modPath: append([]string{}, logicalPath...),
		parent:  ident.ModuleID{ID: modID},
	}
	for _, item := range src.Items {
		v.visitItem(item, scope)
	}
	return v.result
}

type fileVisitor struct {
	ns       ident.Namespace
	filePath string
	result   graph.FileResult
}

// scopeFrame carries the enclosing scope: the module path used for
// resolution, the logical path items are addressed under (differs inside
// impls, traits and type bodies), and the parent identifier.
type scopeFrame struct {
	modPath   []string
	container []string // nil means same as modPath
	parent    ident.Typed
}

func (s scopeFrame) containerPath() []string {
	if s.container != nil {
		return s.container
	}
	return s.modPath
}

// mint derives an item's identifier and, in the same operation, emits its
// containment relation. Bundling the two means an identifier can never
// exist without the edge tying it into the graph.
func (v *fileVisitor) mint(item *astparse.Item, kind ident.Kind, scope scopeFrame, payload map[string]any) ident.Typed {
	path := scope.containerPath()
	id := ident.Derive(v.ns, v.filePath, path, item.Name, kind, scope.parent.Base())
	typed := asTyped(kind, id)

	node := graph.Node{
		ID:          id,
		Kind:        kind,
		Name:        item.Name,
		FilePath:    v.filePath,
		LogicalPath: append([]string{}, path...),
		StartLine:   item.Span.StartLine,
		EndLine:     item.Span.EndLine,
		Vis:         string(item.Vis),
		Attrs:       item.Attrs,
		Hash:        ident.HashTokens(item.Tokens),
		Payload:     payload,
	}
	v.result.Nodes = append(v.result.Nodes, node)

	if rel, ok := containmentFor(scope.parent, typed); ok {
		v.result.Relations = append(v.result.Relations, rel)
	}
	return typed
}

// containmentFor builds the containment edge for a parent/child pair,
// going through the statically typed constructors wherever the endpoint
// types pin the relation kind. Module children vary at runtime, so they
// fall through to the kind table.
func containmentFor(parent, child ident.Typed) (graph.Relation, bool) {
	switch p := parent.(type) {
	case ident.StructID:
		if f, ok := child.(ident.FieldID); ok {
			return graph.StructField(p, f), true
		}
	case ident.UnionID:
		if f, ok := child.(ident.FieldID); ok {
			return graph.UnionField(p, f), true
		}
	case ident.EnumID:
		if vr, ok := child.(ident.VariantID); ok {
			return graph.EnumVariant(p, vr), true
		}
	case ident.VariantID:
		if f, ok := child.(ident.FieldID); ok {
			return graph.VariantField(p, f), true
		}
	case ident.ImplID:
		if m, ok := child.(ident.MethodID); ok {
			return graph.ImplMethod(p, m), true
		}
	case ident.TraitID:
		if m, ok := child.(ident.MethodID); ok {
			return graph.TraitItem(p, m), true
		}
	case ident.ModuleID:
		if sub, ok := child.(ident.ModuleID); ok {
			return graph.ModuleSubmodule(p, sub), true
		}
	}
	return graph.Containment(parent, child)
}

func (v *fileVisitor) visitItem(item *astparse.Item, scope scopeFrame) {
	switch item.Kind {
	case ident.KindModule:
		v.visitModule(item, scope)
	case ident.KindImport:
		v.visitImport(item, scope)
	case ident.KindImpl:
		v.visitImpl(item, scope)
	case ident.KindTrait:
		v.visitTrait(item, scope)
	case ident.KindStruct, ident.KindUnion:
		v.visitFielded(item, item.Kind, scope)
	case ident.KindEnum:
		v.visitEnum(item, scope)
	case ident.KindFunction:
		kind := ident.KindFunction
		if scope.container != nil {
			// Inside an impl or trait body every function is a method.
			kind = ident.KindMethod
		}
		typed := v.mint(item, kind, scope, nil)
		v.pendTypeRefs(typed, item, scope)
	case ident.KindTypeAlias, ident.KindConst, ident.KindStatic:
		typed := v.mint(item, item.Kind, scope, nil)
		v.pendTypeRefs(typed, item, scope)
	case ident.KindMacro:
		v.mint(item, ident.KindMacro, scope, nil)
	}
}

// visitModule handles both inline modules and `mod name;` declarations.
// A declaration emits no node of its own: the declared file's module node
// already owns the path, and a DECLARES_MODULE link is resolved once that
// file has been parsed.
func (v *fileVisitor) visitModule(item *astparse.Item, scope scopeFrame) {
	if item.Declaration {
		v.result.Pending = append(v.result.Pending, graph.PendingRelation{
			Source:       scope.parent.Base(),
			SourceKind:   scope.parent.Kind(),
			SourceFile:   v.filePath,
			SourceModule: append([]string{}, scope.modPath...),
			Path:         append(append([]string{}, scope.modPath...), item.Name),
			Line:         item.Span.StartLine,
			Vis:          string(item.Vis),
			Rule:         graph.RuleModuleDecl,
		})
		return
	}

	typed := v.mint(item, ident.KindModule, scope, nil)
	inner := scopeFrame{
		modPath: append(append([]string{}, scope.modPath...), item.Name),
		parent:  typed,
	}
	for _, child := range item.Children {
		v.visitItem(child, inner)
	}
}

func (v *fileVisitor) visitImport(item *astparse.Item, scope scopeFrame) {
	payload := map[string]any{"path": strings.Join(item.ImportPath, "::")}
	if item.Alias != "" {
		payload["alias"] = item.Alias
	}
	if item.Glob {
		payload["glob"] = true
	}
	typed := v.mint(item, ident.KindImport, scope, payload)

	if item.Glob {
		// No single target to defer to; the node records the glob.
		return
	}
	v.result.Pending = append(v.result.Pending, graph.PendingRelation{
		Source:       typed.Base(),
		SourceKind:   ident.KindImport,
		SourceFile:   v.filePath,
		SourceModule: append([]string{}, scope.modPath...),
		Path:         item.ImportPath,
		Line:         item.Span.StartLine,
		Vis:          string(item.Vis),
		Rule:         graph.RuleImport,
	})
}

func (v *fileVisitor) visitImpl(item *astparse.Item, scope scopeFrame) {
	payload := map[string]any{"self_type": item.SelfType}
	if item.TraitName != "" {
		payload["trait"] = item.TraitName
	}
	typed := v.mint(item, ident.KindImpl, scope, payload)
	v.pendTypeRefs(typed, item, scope)

	// Methods are addressed under the self type, matching how callers
	// path-reference them.
	inner := scopeFrame{
		modPath:   scope.modPath,
		container: append(append([]string{}, scope.modPath...), baseName(item.SelfType)),
		parent:    typed,
	}
	for _, child := range item.Children {
		v.visitItem(child, inner)
	}
}

func (v *fileVisitor) visitTrait(item *astparse.Item, scope scopeFrame) {
	typed := v.mint(item, ident.KindTrait, scope, nil)
	inner := scopeFrame{
		modPath:   scope.modPath,
		container: append(append([]string{}, scope.modPath...), item.Name),
		parent:    typed,
	}
	for _, child := range item.Children {
		v.visitItem(child, inner)
	}
}

// visitFielded covers structs and unions: the type node plus one field
// node per declared field.
func (v *fileVisitor) visitFielded(item *astparse.Item, kind ident.Kind, scope scopeFrame) {
	typed := v.mint(item, kind, scope, nil)
	inner := scopeFrame{
		modPath:   scope.modPath,
		container: append(append([]string{}, scope.modPath...), item.Name),
		parent:    typed,
	}
	for _, field := range item.Children {
		fieldTyped := v.mint(field, ident.KindField, inner, nil)
		v.pendTypeRefs(fieldTyped, field, scope)
	}
}

func (v *fileVisitor) visitEnum(item *astparse.Item, scope scopeFrame) {
	typed := v.mint(item, ident.KindEnum, scope, nil)
	inner := scopeFrame{
		modPath:   scope.modPath,
		container: append(append([]string{}, scope.modPath...), item.Name),
		parent:    typed,
	}
	for _, variant := range item.Children {
		variantTyped := v.mint(variant, ident.KindVariant, inner, nil)
		variantScope := scopeFrame{
			modPath:   scope.modPath,
			container: append(append([]string{}, inner.container...), variant.Name),
			parent:    variantTyped,
		}
		for _, field := range variant.Children {
			fieldTyped := v.mint(field, ident.KindField, variantScope, nil)
			v.pendTypeRefs(fieldTyped, field, scope)
		}
	}
}

// pendTypeRefs records signature-level type references as deferred links.
func (v *fileVisitor) pendTypeRefs(source ident.Typed, item *astparse.Item, scope scopeFrame) {
	for _, ref := range item.TypeRefs {
		path := strings.Split(ref, "::")
		v.result.Pending = append(v.result.Pending, graph.PendingRelation{
			Source:       source.Base(),
			SourceKind:   source.Kind(),
			SourceFile:   v.filePath,
			SourceModule: append([]string{}, scope.modPath...),
			Path:         path,
			Line:         item.Span.StartLine,
			Vis:          string(item.Vis),
			Rule:         graph.RuleTypeRef,
		})
	}
}

func asTyped(kind ident.Kind, id ident.ID) ident.Typed {
	switch kind {
	case ident.KindModule:
		return ident.ModuleID{ID: id}
	case ident.KindFunction:
		return ident.FunctionID{ID: id}
	case ident.KindMethod:
		return ident.MethodID{ID: id}
	case ident.KindStruct:
		return ident.StructID{ID: id}
	case ident.KindEnum:
		return ident.EnumID{ID: id}
	case ident.KindUnion:
		return ident.UnionID{ID: id}
	case ident.KindTrait:
		return ident.TraitID{ID: id}
	case ident.KindImpl:
		return ident.ImplID{ID: id}
	case ident.KindField:
		return ident.FieldID{ID: id}
	case ident.KindVariant:
		return ident.VariantID{ID: id}
	case ident.KindTypeAlias:
		return ident.TypeAliasID{ID: id}
	case ident.KindConst:
		return ident.ConstID{ID: id}
	case ident.KindStatic:
		return ident.StaticID{ID: id}
	case ident.KindMacro:
		return ident.MacroID{ID: id}
	case ident.KindImport:
		return ident.ImportID{ID: id}
	}
	return ident.ModuleID{ID: id}
}

func baseName(t string) string {
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndex(t, "::"); i >= 0 {
		t = t[i+2:]
	}
	return t
}

func allTokens(items []*astparse.Item) []string {
	var tokens []string
	for _, it := range items {
		tokens = append(tokens, it.Tokens...)
	}
	return tokens
}
