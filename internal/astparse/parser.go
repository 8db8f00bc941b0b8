// Package astparse turns Rust source bytes into the structured item list
// the visitor walks. It is the system's AST provider: spans, names,
// visibility, attributes and kind discriminants per item, plus one typed
// parse error per malformed file.
package astparse

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

var (
	langOnce   sync.Once
	rustLang   *tree_sitter.Language
	parserPool *sync.Pool
)

func initLanguage() {
	langOnce.Do(func() {
		rustLang = tree_sitter.NewLanguage(tree_sitter_rust.Language())
		parserPool = &sync.Pool{
			New: func() any {
				p := tree_sitter.NewParser()
				if err := p.SetLanguage(rustLang); err != nil {
					panic(fmt.Sprintf("set language: %v", err))
				}
				return p
			},
		}
	})
}

// ParseError is the single typed error surfaced for a malformed file.
type ParseError struct {
	Path string
	Line uint // 1-based line of the first error node
	Col  uint
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

// Parse parses one file's source into its item list. Parsers are pooled
// to avoid per-file allocation; the tree is closed before returning, so
// the result carries no tree-sitter state.
func Parse(path string, source []byte) (*SourceFile, error) {
	initLanguage()

	p, _ := parserPool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("parser pool exhausted")
	}
	tree := p.Parse(source, nil)
	parserPool.Put(p)
	if tree == nil {
		return nil, &ParseError{Path: path, Line: 1, Col: 1, Msg: "parser produced no tree"}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col, msg := firstError(root, source)
		return nil, &ParseError{Path: path, Line: line, Col: col, Msg: msg}
	}

	return &SourceFile{Items: extractItems(root, source)}, nil
}

// firstError locates the first ERROR or MISSING node for diagnostics.
func firstError(root *tree_sitter.Node, source []byte) (line, col uint, msg string) {
	line, col, msg = 1, 1, "syntax error"
	var walk func(n *tree_sitter.Node) bool
	walk = func(n *tree_sitter.Node) bool {
		if n.IsError() || n.IsMissing() {
			pos := n.StartPosition()
			line, col = uint(pos.Row)+1, uint(pos.Column)+1
			text := nodeText(n, source)
			if len(text) > 40 {
				text = text[:40]
			}
			if n.IsMissing() {
				msg = fmt.Sprintf("missing %s", n.Kind())
			} else if text != "" {
				msg = fmt.Sprintf("unexpected %q", text)
			}
			return true
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil && c.HasError() {
				if walk(c) {
					return true
				}
			}
		}
		return false
	}
	walk(root)
	return
}

func nodeText(n *tree_sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}
