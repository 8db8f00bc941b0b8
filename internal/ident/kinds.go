package ident

// Kind discriminates the node kinds an identifier can address. It feeds
// the derivation hash, so reordering existing values changes every ID.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindModule
	KindFunction
	KindMethod
	KindStruct
	KindEnum
	KindUnion
	KindTrait
	KindImpl
	KindField
	KindVariant
	KindTypeAlias
	KindConst
	KindStatic
	KindMacro
	KindImport
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindModule:    "module",
	KindFunction:  "function",
	KindMethod:    "method",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindUnion:     "union",
	KindTrait:     "trait",
	KindImpl:      "impl",
	KindField:     "field",
	KindVariant:   "variant",
	KindTypeAlias: "type_alias",
	KindConst:     "const",
	KindStatic:    "static",
	KindMacro:     "macro",
	KindImport:    "import",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindFromString is the inverse of Kind.String, for rows read back from
// the store.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Typed identifier wrappers. Relation constructors take these instead of
// bare IDs so that an edge between nonsensical endpoint kinds does not
// compile.

type ModuleID struct{ ID }
type FunctionID struct{ ID }
type MethodID struct{ ID }
type StructID struct{ ID }
type EnumID struct{ ID }
type UnionID struct{ ID }
type TraitID struct{ ID }
type ImplID struct{ ID }
type FieldID struct{ ID }
type VariantID struct{ ID }
type TypeAliasID struct{ ID }
type ConstID struct{ ID }
type StaticID struct{ ID }
type MacroID struct{ ID }
type ImportID struct{ ID }

func (ModuleID) Kind() Kind    { return KindModule }
func (FunctionID) Kind() Kind  { return KindFunction }
func (MethodID) Kind() Kind    { return KindMethod }
func (StructID) Kind() Kind    { return KindStruct }
func (EnumID) Kind() Kind      { return KindEnum }
func (UnionID) Kind() Kind     { return KindUnion }
func (TraitID) Kind() Kind     { return KindTrait }
func (ImplID) Kind() Kind      { return KindImpl }
func (FieldID) Kind() Kind     { return KindField }
func (VariantID) Kind() Kind   { return KindVariant }
func (TypeAliasID) Kind() Kind { return KindTypeAlias }
func (ConstID) Kind() Kind     { return KindConst }
func (StaticID) Kind() Kind    { return KindStatic }
func (MacroID) Kind() Kind     { return KindMacro }
func (ImportID) Kind() Kind    { return KindImport }

// Typed is implemented by every typed identifier wrapper.
type Typed interface {
	Kind() Kind
	Base() ID
}

func (id ModuleID) Base() ID    { return id.ID }
func (id FunctionID) Base() ID  { return id.ID }
func (id MethodID) Base() ID    { return id.ID }
func (id StructID) Base() ID    { return id.ID }
func (id EnumID) Base() ID      { return id.ID }
func (id UnionID) Base() ID     { return id.ID }
func (id TraitID) Base() ID     { return id.ID }
func (id ImplID) Base() ID      { return id.ID }
func (id FieldID) Base() ID     { return id.ID }
func (id VariantID) Base() ID   { return id.ID }
func (id TypeAliasID) Base() ID { return id.ID }
func (id ConstID) Base() ID     { return id.ID }
func (id StaticID) Base() ID    { return id.ID }
func (id MacroID) Base() ID     { return id.ID }
func (id ImportID) Base() ID    { return id.ID }
