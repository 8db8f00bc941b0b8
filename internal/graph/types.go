// Package graph models the code graph and its staged construction:
// raw per-file results are merged into an UnvalidatedGraph, uniqueness
// checking produces a ValidatedGraph, and the sequential resolution pass
// turns that into the committed LogicalGraph. Each stage is a distinct
// type with unexported fields, so a function requiring validated data
// cannot receive raw data.
package graph

import (
	"fmt"
	"strings"

	"github.com/DeusData/codegraph/internal/ident"
)

// Node is one parsed item.
type Node struct {
	ID          ident.ID
	Kind        ident.Kind
	Name        string
	FilePath    string   // relative to the group root; the owning file
	LogicalPath []string // enclosing module path, e.g. ["crate","m"]
	StartLine   uint
	EndLine     uint
	Vis         string
	Attrs       []string
	Hash        ident.TrackingHash
	// Payload carries kind-specific detail (impl self type, import alias).
	Payload map[string]any
}

// PathKey is the node's full logical path including its own name, the key
// used for resolution lookups.
func (n Node) PathKey() string {
	if len(n.LogicalPath) == 0 {
		return n.Name
	}
	return strings.Join(n.LogicalPath, "::") + "::" + n.Name
}

// RelationKind names a typed edge. Formed kinds are emitted directly by
// the visitor for purely local structure; the remaining kinds only exist
// after resolution.
type RelationKind string

const (
	RelStructField     RelationKind = "STRUCT_FIELD"
	RelEnumVariant     RelationKind = "ENUM_VARIANT"
	RelVariantField    RelationKind = "VARIANT_FIELD"
	RelUnionField      RelationKind = "UNION_FIELD"
	RelImplMethod      RelationKind = "IMPL_METHOD"
	RelTraitItem       RelationKind = "TRAIT_ITEM"
	RelModuleFunction  RelationKind = "MODULE_FUNCTION"
	RelModuleStruct    RelationKind = "MODULE_STRUCT"
	RelModuleEnum      RelationKind = "MODULE_ENUM"
	RelModuleUnion     RelationKind = "MODULE_UNION"
	RelModuleTrait     RelationKind = "MODULE_TRAIT"
	RelModuleImpl      RelationKind = "MODULE_IMPL"
	RelModuleConst     RelationKind = "MODULE_CONST"
	RelModuleStatic    RelationKind = "MODULE_STATIC"
	RelModuleTypeAlias RelationKind = "MODULE_TYPE_ALIAS"
	RelModuleMacro     RelationKind = "MODULE_MACRO"
	RelModuleSubmodule RelationKind = "MODULE_SUBMODULE"
	RelModuleImport    RelationKind = "MODULE_IMPORT"

	// Resolution-produced kinds.
	RelDeclaresModule RelationKind = "DECLARES_MODULE"
	RelImportsItem    RelationKind = "IMPORTS_ITEM"
	RelReferencesType RelationKind = "REFERENCES_TYPE"
)

// Relation is a finalized typed edge. The target may remain Synthetic when
// it is legitimately external to the analyzed group.
type Relation struct {
	Kind       RelationKind
	Source     ident.ID
	SourceKind ident.Kind
	Target     ident.ID
	TargetKind ident.Kind
}

func (r Relation) key() string {
	return string(r.Kind) + "|" + r.Source.UUID().String() + "|" + r.Target.UUID().String()
}

// containmentKinds maps a (parent kind, child kind) pair to the most
// specific relation kind it implies. The visitor consults this table when
// bundling identifier minting with the containment edge; a pair missing
// here is a programming error, never a generic fallback.
var containmentKinds = map[[2]ident.Kind]RelationKind{
	{ident.KindStruct, ident.KindField}:     RelStructField,
	{ident.KindEnum, ident.KindVariant}:     RelEnumVariant,
	{ident.KindVariant, ident.KindField}:    RelVariantField,
	{ident.KindUnion, ident.KindField}:      RelUnionField,
	{ident.KindImpl, ident.KindMethod}:      RelImplMethod,
	{ident.KindTrait, ident.KindMethod}:     RelTraitItem,
	{ident.KindModule, ident.KindFunction}:  RelModuleFunction,
	{ident.KindModule, ident.KindStruct}:    RelModuleStruct,
	{ident.KindModule, ident.KindEnum}:      RelModuleEnum,
	{ident.KindModule, ident.KindUnion}:     RelModuleUnion,
	{ident.KindModule, ident.KindTrait}:     RelModuleTrait,
	{ident.KindModule, ident.KindImpl}:      RelModuleImpl,
	{ident.KindModule, ident.KindConst}:     RelModuleConst,
	{ident.KindModule, ident.KindStatic}:    RelModuleStatic,
	{ident.KindModule, ident.KindTypeAlias}: RelModuleTypeAlias,
	{ident.KindModule, ident.KindMacro}:     RelModuleMacro,
	{ident.KindModule, ident.KindModule}:    RelModuleSubmodule,
	{ident.KindModule, ident.KindImport}:    RelModuleImport,
}

// Containment returns the specific containment relation for a parent/child
// pair. ok is false when the pair has no structural meaning.
func Containment(parent, child ident.Typed) (Relation, bool) {
	kind, ok := containmentKinds[[2]ident.Kind{parent.Kind(), child.Kind()}]
	if !ok {
		return Relation{}, false
	}
	return Relation{
		Kind:       kind,
		Source:     parent.Base(),
		SourceKind: parent.Kind(),
		Target:     child.Base(),
		TargetKind: child.Kind(),
	}, true
}

// Statically typed constructors for containment pairs whose relation
// kind the endpoint types already pin down. They cannot fail: a
// nonsensical pairing is unrepresentable at their call sites.

func StructField(s ident.StructID, f ident.FieldID) Relation {
	return formed(RelStructField, s, f)
}

func UnionField(u ident.UnionID, f ident.FieldID) Relation {
	return formed(RelUnionField, u, f)
}

func EnumVariant(e ident.EnumID, v ident.VariantID) Relation {
	return formed(RelEnumVariant, e, v)
}

func VariantField(v ident.VariantID, f ident.FieldID) Relation {
	return formed(RelVariantField, v, f)
}

func ImplMethod(i ident.ImplID, m ident.MethodID) Relation {
	return formed(RelImplMethod, i, m)
}

func TraitItem(t ident.TraitID, m ident.MethodID) Relation {
	return formed(RelTraitItem, t, m)
}

func ModuleSubmodule(parent, child ident.ModuleID) Relation {
	return formed(RelModuleSubmodule, parent, child)
}

func formed(kind RelationKind, parent, child ident.Typed) Relation {
	return Relation{
		Kind:       kind,
		Source:     parent.Base(),
		SourceKind: parent.Kind(),
		Target:     child.Base(),
		TargetKind: child.Kind(),
	}
}

// PendingRule discriminates how a deferred link is resolved.
type PendingRule uint8

const (
	// RuleImport resolves a use-declaration path to the imported item.
	RuleImport PendingRule = iota + 1
	// RuleModuleDecl links a `mod name;` declaration to the module node
	// parsed from the declared file.
	RuleModuleDecl
	// RuleTypeRef links a signature-level type reference to its
	// declaration. Resolved best-effort: bare names that match nothing
	// (generic parameters, prelude types) are dropped, not errors.
	RuleTypeRef
)

// PendingRelation records a link intent whose target cannot be determined
// file-locally. Captured during parallel parsing, resolved sequentially.
type PendingRelation struct {
	Source       ident.ID
	SourceKind   ident.Kind
	SourceFile   string
	SourceModule []string // logical path of the enclosing module
	Path         []string // unresolved textual path
	Line         uint
	Vis          string
	Rule         PendingRule
}

// NodeDesc describes one node in an error message with enough context to
// act on.
type NodeDesc struct {
	Name string
	Kind ident.Kind
	File string
	Line uint
	Hash ident.TrackingHash
}

func describe(n Node) NodeDesc {
	return NodeDesc{Name: n.Name, Kind: n.Kind, File: n.FilePath, Line: n.StartLine, Hash: n.Hash}
}

func (d NodeDesc) String() string {
	return fmt.Sprintf("%s %s at %s:%d (hash %s)", d.Kind, d.Name, d.File, d.Line, d.Hash)
}

// DuplicateIdentifierError reports two distinct nodes claiming one
// identifier with non-identical content. Fatal for the group.
type DuplicateIdentifierError struct {
	ID     ident.ID
	First  NodeDesc
	Second NodeDesc
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate identifier %s: %s vs %s", e.ID, e.First, e.Second)
}

// UnresolvedReferenceError reports a local reference that should resolve
// but does not. Never raised for legitimately external targets.
type UnresolvedReferenceError struct {
	Path   []string
	File   string
	Line   uint
	Reason string
	// Candidates carries the competing targets when the failure is an
	// ambiguity.
	Candidates []NodeDesc
}

func (e *UnresolvedReferenceError) Error() string {
	msg := fmt.Sprintf("unresolved reference %s at %s:%d: %s",
		strings.Join(e.Path, "::"), e.File, e.Line, e.Reason)
	for _, c := range e.Candidates {
		msg += "\n  candidate: " + c.String()
	}
	return msg
}
