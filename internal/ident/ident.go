// Package ident derives deterministic, content-addressed identifiers for
// graph nodes. The same lexical and positional inputs always produce the
// same identifier, which is what makes re-parsing idempotent: a worker can
// mint IDs for its file in isolation and two independent runs converge on
// bit-identical graphs.
package ident

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// projectNamespace is the root namespace for all derived identifiers.
// Changing it invalidates every previously committed identifier, so it is
// effectively a version stamp for the derivation scheme itself.
var projectNamespace = uuid.MustParse("3b1f62e4-8c0d-47a5-9f21-6d4e0a9c2b17")

// Namespace is a UUID namespace scoping identifier derivation to one
// translation-unit group (crate name + version under the project root).
type Namespace struct {
	u uuid.UUID
}

// ProjectNamespace returns the root namespace shared by all groups.
func ProjectNamespace() Namespace {
	return Namespace{u: projectNamespace}
}

// DeriveNamespace derives the namespace for a unit from its name and
// version. Stable for a fixed (name, version) pair.
func DeriveNamespace(parent Namespace, unitName, unitVersion string) Namespace {
	return Namespace{u: uuid.NewSHA1(parent.u, []byte(unitName+"@"+unitVersion))}
}

func (ns Namespace) String() string { return ns.u.String() }

// IsZero reports whether the namespace was never derived.
func (ns Namespace) IsZero() bool { return ns.u == uuid.UUID{} }

// ID identifies one graph node. It is either Synthetic (derived locally
// during parallel parsing) or Resolved (promoted by the resolution engine
// once its target is fully linked). The zero value is invalid and used to
// mean "no parent scope".
type ID struct {
	u        uuid.UUID
	resolved bool
}

// Synthetic wraps a raw UUID as a synthetic identifier.
func Synthetic(u uuid.UUID) ID { return ID{u: u} }

// Resolved wraps a raw UUID as a fully linked identifier.
func Resolved(u uuid.UUID) ID { return ID{u: u, resolved: true} }

// AsResolved returns the same identifier promoted to Resolved. Only the
// resolution engine should call this.
func (id ID) AsResolved() ID { return ID{u: id.u, resolved: true} }

func (id ID) IsZero() bool      { return id.u == uuid.UUID{} }
func (id ID) IsSynthetic() bool { return !id.resolved }
func (id ID) UUID() uuid.UUID   { return id.u }

// Same reports whether two identifiers address the same node, ignoring
// the synthetic/resolved tag.
func (id ID) Same(other ID) bool { return id.u == other.u }

func (id ID) String() string {
	if id.IsZero() {
		return "id:zero"
	}
	if id.resolved {
		return "res:" + id.u.String()
	}
	return "syn:" + id.u.String()
}

// Parse reconstructs an ID from its String form.
func Parse(s string) (ID, error) {
	switch {
	case strings.HasPrefix(s, "syn:"):
		u, err := uuid.Parse(s[4:])
		if err != nil {
			return ID{}, fmt.Errorf("parse id %q: %w", s, err)
		}
		return Synthetic(u), nil
	case strings.HasPrefix(s, "res:"):
		u, err := uuid.Parse(s[4:])
		if err != nil {
			return ID{}, fmt.Errorf("parse id %q: %w", s, err)
		}
		return Resolved(u), nil
	}
	return ID{}, fmt.Errorf("parse id %q: missing syn:/res: tag", s)
}

// Derive mints the synthetic identifier for an item. Inputs cover
// everything that determines the item's lexical identity: the group
// namespace, its file, the enclosing module path, its own name, its kind
// discriminant, and the immediately enclosing scope's identifier. Pure and
// total; identical inputs always yield the same ID.
func Derive(ns Namespace, filePath string, logicalPath []string, name string, kind Kind, parent ID) ID {
	var buf []byte
	buf = appendField(buf, []byte(filePath))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(logicalPath)))
	for _, seg := range logicalPath {
		buf = appendField(buf, []byte(seg))
	}
	buf = appendField(buf, []byte(name))
	buf = binary.BigEndian.AppendUint32(buf, uint32(kind))
	buf = appendField(buf, parent.u[:])
	return Synthetic(uuid.NewSHA1(ns.u, buf))
}

// DeriveExternal mints the synthetic identifier for a target outside the
// analyzed group (a foreign crate path). The namespace is derived from
// the path's leading segment with a fixed placeholder version, so any two
// references to the same external item converge on one identifier.
func DeriveExternal(path []string) ID {
	if len(path) == 0 {
		return ID{}
	}
	ns := DeriveNamespace(ProjectNamespace(), path[0], "_")
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(path)))
	for _, seg := range path {
		buf = appendField(buf, []byte(seg))
	}
	return Synthetic(uuid.NewSHA1(ns.u, buf))
}

// appendField length-prefixes each field so that adjacent fields can never
// alias each other ("a","bc" vs "ab","c").
func appendField(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}
