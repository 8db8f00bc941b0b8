package astparse

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codegraph/internal/ident"
)

// Span locates an item in its file. Lines are 1-based.
type Span struct {
	StartByte uint
	EndByte   uint
	StartLine uint
	EndLine   uint
}

// Visibility of an item as written in source.
type Visibility string

const (
	VisPrivate    Visibility = "private"
	VisPublic     Visibility = "pub"
	VisCrate      Visibility = "pub(crate)"
	VisRestricted Visibility = "pub(restricted)"
)

// Item is one parsed source item. Children hold structurally nested items
// (fields of a struct, methods of an impl, items of an inline module).
type Item struct {
	Kind     ident.Kind
	Name     string
	Span     Span
	Vis      Visibility
	Attrs    []string
	Tokens   []string // normalized token stream, comments excluded
	Children []*Item

	// Import items only.
	ImportPath []string
	Alias      string
	Glob       bool

	// Impl items only.
	SelfType  string
	TraitName string

	// Module items: true for `mod name;` without a body.
	Declaration bool

	// Type names referenced in the item's signature, as written
	// (possibly path-qualified).
	TypeRefs []string
}

// SourceFile is the structured item list for one parsed file.
type SourceFile struct {
	Items []*Item
}

// extractItems walks the named children of a container node (source_file,
// declaration_list, field lists) and builds items, associating each run of
// preceding attribute_items with the item that follows.
func extractItems(container *tree_sitter.Node, source []byte) []*Item {
	var items []*Item
	var pendingAttrs []string

	for i := uint(0); i < container.NamedChildCount(); i++ {
		child := container.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "attribute_item", "inner_attribute_item":
			pendingAttrs = append(pendingAttrs, nodeText(child, source))
			continue
		case "line_comment", "block_comment":
			continue
		}
		extracted := extractItem(child, source, pendingAttrs)
		pendingAttrs = nil
		items = append(items, extracted...)
	}
	return items
}

// extractItem builds zero or more items from one declaration node. Use
// declarations may flatten into several import items.
func extractItem(n *tree_sitter.Node, source []byte, attrs []string) []*Item {
	switch n.Kind() {
	case "function_item", "function_signature_item":
		item := newItem(ident.KindFunction, fieldText(n, "name", source), n, source, attrs)
		item.TypeRefs = signatureTypeRefs(n, source)
		return []*Item{item}

	case "struct_item":
		item := newItem(ident.KindStruct, fieldText(n, "name", source), n, source, attrs)
		item.Children = extractFields(n.ChildByFieldName("body"), source)
		return []*Item{item}

	case "enum_item":
		item := newItem(ident.KindEnum, fieldText(n, "name", source), n, source, attrs)
		if body := n.ChildByFieldName("body"); body != nil {
			for i := uint(0); i < body.NamedChildCount(); i++ {
				v := body.NamedChild(i)
				if v == nil || v.Kind() != "enum_variant" {
					continue
				}
				variant := newItem(ident.KindVariant, fieldText(v, "name", source), v, source, nil)
				variant.Children = extractFields(v.ChildByFieldName("body"), source)
				item.Children = append(item.Children, variant)
			}
		}
		return []*Item{item}

	case "union_item":
		item := newItem(ident.KindUnion, fieldText(n, "name", source), n, source, attrs)
		item.Children = extractFields(n.ChildByFieldName("body"), source)
		return []*Item{item}

	case "trait_item":
		item := newItem(ident.KindTrait, fieldText(n, "name", source), n, source, attrs)
		if body := n.ChildByFieldName("body"); body != nil {
			item.Children = extractItems(body, source)
		}
		return []*Item{item}

	case "impl_item":
		selfType := fieldText(n, "type", source)
		item := newItem(ident.KindImpl, implName(n, source, selfType), n, source, attrs)
		item.SelfType = selfType
		item.TraitName = fieldText(n, "trait", source)
		if item.TraitName != "" {
			item.TypeRefs = append(item.TypeRefs, item.TraitName)
		}
		if selfType != "" {
			item.TypeRefs = append(item.TypeRefs, baseTypeName(selfType))
		}
		if body := n.ChildByFieldName("body"); body != nil {
			item.Children = extractItems(body, source)
		}
		return []*Item{item}

	case "mod_item":
		item := newItem(ident.KindModule, fieldText(n, "name", source), n, source, attrs)
		body := n.ChildByFieldName("body")
		if body == nil {
			item.Declaration = true
		} else {
			item.Children = extractItems(body, source)
		}
		return []*Item{item}

	case "use_declaration":
		if arg := n.ChildByFieldName("argument"); arg != nil {
			return flattenUseTree(arg, source, nil, n, attrs)
		}
		return nil

	case "type_item":
		item := newItem(ident.KindTypeAlias, fieldText(n, "name", source), n, source, attrs)
		item.TypeRefs = collectTypeRefs(n.ChildByFieldName("type"), source, nil)
		return []*Item{item}

	case "const_item":
		item := newItem(ident.KindConst, fieldText(n, "name", source), n, source, attrs)
		item.TypeRefs = collectTypeRefs(n.ChildByFieldName("type"), source, nil)
		return []*Item{item}

	case "static_item":
		item := newItem(ident.KindStatic, fieldText(n, "name", source), n, source, attrs)
		item.TypeRefs = collectTypeRefs(n.ChildByFieldName("type"), source, nil)
		return []*Item{item}

	case "macro_definition":
		return []*Item{newItem(ident.KindMacro, fieldText(n, "name", source), n, source, attrs)}
	}
	return nil
}

// extractFields handles field_declaration_list and
// ordered_field_declaration_list bodies. Tuple fields are named by index.
func extractFields(body *tree_sitter.Node, source []byte) []*Item {
	if body == nil {
		return nil
	}
	var fields []*Item
	switch body.Kind() {
	case "field_declaration_list":
		for i := uint(0); i < body.NamedChildCount(); i++ {
			f := body.NamedChild(i)
			if f == nil || f.Kind() != "field_declaration" {
				continue
			}
			field := newItem(ident.KindField, fieldText(f, "name", source), f, source, nil)
			field.TypeRefs = collectTypeRefs(f.ChildByFieldName("type"), source, nil)
			fields = append(fields, field)
		}
	case "ordered_field_declaration_list":
		idx := 0
		for i := uint(0); i < body.NamedChildCount(); i++ {
			f := body.NamedChild(i)
			if f == nil {
				continue
			}
			switch f.Kind() {
			case "visibility_modifier", "attribute_item", "line_comment", "block_comment":
				continue
			}
			field := newItem(ident.KindField, strconv.Itoa(idx), f, source, nil)
			field.TypeRefs = collectTypeRefs(f, source, nil)
			fields = append(fields, field)
			idx++
		}
	}
	return fields
}

// flattenUseTree expands one use tree into import items. `a::{b, c as d}`
// yields two items.
func flattenUseTree(n *tree_sitter.Node, source []byte, prefix []string, span *tree_sitter.Node, attrs []string) []*Item {
	switch n.Kind() {
	case "identifier", "crate", "self", "super", "metavariable":
		path := appendPath(prefix, nodeText(n, source))
		return []*Item{importItem(path, path[len(path)-1], false, span, source, attrs)}

	case "scoped_identifier":
		path := appendPath(prefix, splitPath(nodeText(n, source))...)
		return []*Item{importItem(path, path[len(path)-1], false, span, source, attrs)}

	case "use_as_clause":
		pathNode := n.ChildByFieldName("path")
		aliasNode := n.ChildByFieldName("alias")
		if pathNode == nil || aliasNode == nil {
			return nil
		}
		path := appendPath(prefix, splitPath(nodeText(pathNode, source))...)
		item := importItem(path, nodeText(aliasNode, source), false, span, source, attrs)
		item.Alias = nodeText(aliasNode, source)
		return []*Item{item}

	case "scoped_use_list":
		base := prefix
		if pathNode := n.ChildByFieldName("path"); pathNode != nil {
			base = appendPath(prefix, splitPath(nodeText(pathNode, source))...)
		}
		var items []*Item
		if list := n.ChildByFieldName("list"); list != nil {
			for i := uint(0); i < list.NamedChildCount(); i++ {
				if c := list.NamedChild(i); c != nil {
					items = append(items, flattenUseTree(c, source, base, span, attrs)...)
				}
			}
		}
		return items

	case "use_list":
		var items []*Item
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if c := n.NamedChild(i); c != nil {
				items = append(items, flattenUseTree(c, source, prefix, span, attrs)...)
			}
		}
		return items

	case "use_wildcard":
		path := prefix
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if c := n.NamedChild(i); c != nil {
				path = appendPath(path, splitPath(nodeText(c, source))...)
				break
			}
		}
		return []*Item{importItem(path, "*", true, span, source, attrs)}
	}
	return nil
}

func importItem(path []string, name string, glob bool, span *tree_sitter.Node, source []byte, attrs []string) *Item {
	item := newItem(ident.KindImport, name, span, source, attrs)
	item.ImportPath = path
	item.Glob = glob
	return item
}

// newItem fills the fields every item shares: span, visibility, attributes
// and the token stream for tracking hashes.
func newItem(kind ident.Kind, name string, n *tree_sitter.Node, source []byte, attrs []string) *Item {
	start := n.StartPosition()
	end := n.EndPosition()
	return &Item{
		Kind:  kind,
		Name:  name,
		Attrs: attrs,
		Span: Span{
			StartByte: uint(n.StartByte()),
			EndByte:   uint(n.EndByte()),
			StartLine: uint(start.Row) + 1,
			EndLine:   uint(end.Row) + 1,
		},
		Vis:    itemVisibility(n, source),
		Tokens: collectTokens(n, source),
	}
}

func itemVisibility(n *tree_sitter.Node, source []byte) Visibility {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil || c.Kind() != "visibility_modifier" {
			continue
		}
		switch nodeText(c, source) {
		case "pub":
			return VisPublic
		case "pub(crate)":
			return VisCrate
		default:
			return VisRestricted
		}
	}
	return VisPrivate
}

// collectTokens gathers the item's leaf token texts, skipping comments.
// The stream feeds the tracking hash, so formatting and doc changes do not
// register as content changes.
func collectTokens(n *tree_sitter.Node, source []byte) []string {
	var tokens []string
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		kind := node.Kind()
		if kind == "line_comment" || kind == "block_comment" {
			return
		}
		if node.ChildCount() == 0 {
			tokens = append(tokens, nodeText(node, source))
			return
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			if c := node.Child(i); c != nil {
				walk(c)
			}
		}
	}
	walk(n)
	return tokens
}

// signatureTypeRefs collects type names from a function's parameters and
// return type. Bodies are deliberately excluded: only signature-level
// references become pending links.
func signatureTypeRefs(n *tree_sitter.Node, source []byte) []string {
	var refs []string
	refs = collectTypeRefs(n.ChildByFieldName("parameters"), source, refs)
	refs = collectTypeRefs(n.ChildByFieldName("return_type"), source, refs)
	return refs
}

func collectTypeRefs(n *tree_sitter.Node, source []byte, refs []string) []string {
	if n == nil {
		return refs
	}
	switch n.Kind() {
	case "scoped_type_identifier":
		return appendRef(refs, nodeText(n, source))
	case "type_identifier":
		return appendRef(refs, nodeText(n, source))
	case "primitive_type":
		return refs
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil {
			refs = collectTypeRefs(c, source, refs)
		}
	}
	return refs
}

func appendRef(refs []string, ref string) []string {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}

// implName synthesizes a display name for an impl block, which has no
// source-level name of its own.
func implName(n *tree_sitter.Node, source []byte, selfType string) string {
	if trait := fieldText(n, "trait", source); trait != "" {
		return trait + " for " + selfType
	}
	return "impl " + selfType
}

// baseTypeName strips generic arguments: "Vec<T>" -> "Vec".
func baseTypeName(t string) string {
	if i := strings.IndexByte(t, '<'); i >= 0 {
		return t[:i]
	}
	return t
}

func fieldText(n *tree_sitter.Node, field string, source []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return nodeText(c, source)
}

func splitPath(text string) []string {
	parts := strings.Split(text, "::")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendPath(prefix []string, segs ...string) []string {
	path := make([]string, 0, len(prefix)+len(segs))
	path = append(path, prefix...)
	return append(path, segs...)
}
