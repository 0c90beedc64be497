package resolve

import (
	"fmt"
	"strings"

	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/source"
)

// Kind is the kind of a value type.
type Kind uint8

// Value type kinds.
const (
	KindString Kind = iota + 1
	KindNumber
	KindBoolean
	KindDate
	KindLiteral
	KindAlias
	KindArray
	KindUnion
	KindJoin
)

var kindNames = map[Kind]string{
	KindString:  "string",
	KindNumber:  "number",
	KindBoolean: "boolean",
	KindDate:    "Date",
	KindLiteral: "literal",
	KindAlias:   "alias",
	KindArray:   "Array",
	KindUnion:   "union",
	KindJoin:    "join",
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Primitive reports whether k is string, number, boolean or Date.
func (k Kind) Primitive() bool { return k >= KindString && k <= KindDate }

// ValueType is the resolved type of a field or alias alternative.
type ValueType struct {
	Kind Kind
	// Literal is set for KindLiteral.
	Literal *Literal
	// Alias is set for KindAlias.
	Alias *Alias
	// Elem is set for KindArray.
	Elem *ValueType
	// Alternatives is set for KindUnion.
	Alternatives []*ValueType
	// Target is set for KindJoin.
	Target *Table
}

// String renders the type in schema syntax.
func (t *ValueType) String() string {
	switch t.Kind {
	case KindLiteral:
		return t.Literal.Node.Raw()
	case KindAlias:
		return t.Alias.Name
	case KindArray:
		return "Array<" + t.Elem.String() + ">"
	case KindUnion:
		parts := make([]string, len(t.Alternatives))
		for i, a := range t.Alternatives {
			parts[i] = a.String()
		}
		return strings.Join(parts, " | ")
	case KindJoin:
		return t.Target.ItemName
	}
	return t.Kind.String()
}

// LiteralKind is the kind of a literal value.
type LiteralKind uint8

// Literal kinds.
const (
	LiteralString LiteralKind = iota + 1
	LiteralInteger
	LiteralFloat
	LiteralBoolean
)

// Literal is a typed literal value. Value holds a string, int64, float64
// or bool according to Kind.
type Literal struct {
	Kind  LiteralKind
	Value any
	Node  ast.Literal
}

// NewLiteral returns the typed value of a literal node.
func NewLiteral(n ast.Literal) *Literal {
	switch n := n.(type) {
	case *ast.StringLiteral:
		return &Literal{Kind: LiteralString, Value: n.Value, Node: n}
	case *ast.IntegerLiteral:
		return &Literal{Kind: LiteralInteger, Value: n.Value, Node: n}
	case *ast.FloatLiteral:
		return &Literal{Kind: LiteralFloat, Value: n.Value, Node: n}
	case *ast.BooleanLiteral:
		return &Literal{Kind: LiteralBoolean, Value: n.Value, Node: n}
	}
	panic(fmt.Sprintf("resolve: unexpected literal %T", n))
}

// Primitive returns the primitive kind the literal belongs to.
func (l *Literal) Primitive() Kind {
	switch l.Kind {
	case LiteralString:
		return KindString
	case LiteralBoolean:
		return KindBoolean
	}
	return KindNumber
}

// Equal reports whether two literals denote the same value. Integer and
// float literals compare by numeric value.
func (l *Literal) Equal(o *Literal) bool {
	if l.Primitive() != o.Primitive() {
		return false
	}
	if l.Primitive() == KindNumber {
		return l.number() == o.number()
	}
	return l.Value == o.Value
}

func (l *Literal) number() float64 {
	if v, ok := l.Value.(int64); ok {
		return float64(v)
	}
	return l.Value.(float64)
}

// Builtin type names recognized in type references.
const (
	builtinDate  = "Date"
	builtinArray = "Array"
)

// refClass is what a type reference name resolves to.
type refClass uint8

const (
	refUnknown refClass = iota
	refAlias
	refBuiltin
	refTable
	refAmbiguous
)

// classify resolves a type reference name. Aliases shadow builtins and
// builtins shadow tables.
func (s *Schema) classify(name string) refClass {
	switch {
	case s.aliases[name] != nil:
		return refAlias
	case name == builtinDate || name == builtinArray:
		return refBuiltin
	}
	switch len(s.items[name]) {
	case 0:
		return refUnknown
	case 1:
		return refTable
	}
	return refAmbiguous
}

// primitiveOf maps a keyword to its kind.
func primitiveOf(k *ast.Keyword) Kind {
	switch k.Kind {
	case ast.KeywordString:
		return KindString
	case ast.KeywordNumber:
		return KindNumber
	}
	return KindBoolean
}

// valueType converts a type node whose references were already checked.
// Unresolvable references yield nil.
func (s *Schema) valueType(n ast.TypeNode) *ValueType {
	switch n := n.(type) {
	case *ast.Keyword:
		return &ValueType{Kind: primitiveOf(n)}
	case ast.Literal:
		return &ValueType{Kind: KindLiteral, Literal: NewLiteral(n)}
	case *ast.TypeReference:
		name := n.Name.Value
		switch s.classify(name) {
		case refAlias:
			return &ValueType{Kind: KindAlias, Alias: s.aliases[name]}
		case refBuiltin:
			if name == builtinDate {
				return &ValueType{Kind: KindDate}
			}
			if len(n.TypeArguments) != 1 {
				return nil
			}
			elem := s.valueType(n.TypeArguments[0])
			if elem == nil {
				return nil
			}
			return &ValueType{Kind: KindArray, Elem: elem}
		case refTable:
			return &ValueType{Kind: KindJoin, Target: s.items[name][0]}
		}
	}
	return nil
}

// FieldType computes the value type of a field: its non-literal
// alternatives, or the primitive type of its literal when it has none.
func (s *Schema) FieldType(f *Field) *ValueType {
	var alts []*ValueType
	var lit ast.Literal
	for _, n := range f.Def.Alternatives {
		if l, ok := n.(ast.Literal); ok {
			lit = l
			continue
		}
		if vt := s.valueType(n); vt != nil {
			alts = append(alts, vt)
		}
	}
	switch {
	case len(alts) == 1:
		return alts[0]
	case len(alts) > 1:
		return &ValueType{Kind: KindUnion, Alternatives: alts}
	case lit != nil:
		return &ValueType{Kind: NewLiteral(lit).Primitive()}
	}
	return nil
}

// checkReference validates a type reference used in an alias or a field.
// inAlias and nested forbid table references.
func (s *Schema) checkReference(ref *ast.TypeReference, inAlias, nested bool) diag.List {
	var errs diag.List
	name := ref.Name.Value
	switch s.classify(name) {
	case refAlias:
		if len(ref.TypeArguments) > 0 {
			errs.Add(diag.New(diag.InvalidTypeArguments, ref.Loc, "type alias %q does not take type arguments", name))
		}
	case refBuiltin:
		switch {
		case name == builtinDate && len(ref.TypeArguments) > 0:
			errs.Add(diag.New(diag.InvalidTypeArguments, ref.Loc, "Date does not take type arguments"))
		case name == builtinArray && len(ref.TypeArguments) != 1:
			errs.Add(diag.New(diag.InvalidTypeArguments, ref.Loc, "Array takes exactly one type argument, got %d", len(ref.TypeArguments)))
		}
		for _, arg := range ref.TypeArguments {
			if r, ok := arg.(*ast.TypeReference); ok {
				errs.Add(s.checkReference(r, inAlias, true)...)
			}
		}
	case refTable:
		switch {
		case inAlias:
			errs.Add(diag.New(diag.InvalidJoinType, ref.Loc, "type alias cannot reference table %q", name))
		case nested:
			errs.Add(diag.New(diag.InvalidJoinType, ref.Loc, "table %q cannot be used as a type argument", name))
		case len(ref.TypeArguments) > 0:
			errs.Add(diag.New(diag.InvalidTypeArguments, ref.Loc, "table %q does not take type arguments", name))
		}
	case refAmbiguous:
		var related []source.Location
		for _, t := range s.items[name] {
			related = append(related, t.LocationOf(name))
		}
		errs.Add(diag.New(diag.AmbiguousJoinTarget, ref.Loc, "type %q matches %d tables: %s",
			name, len(s.items[name]), tableNames(s.items[name])).WithRelated(related...))
	default:
		errs.Add(diag.New(diag.UnknownTypeReference, ref.Loc, "unknown type %q", name))
	}
	return errs
}

func tableNames(ts []*Table) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Database.Name + "." + t.Name
	}
	return strings.Join(names, ", ")
}

// admits reports whether a literal is a value of type t.
func admits(t *ValueType, lit *Literal, seen map[*Alias]bool) bool {
	switch t.Kind {
	case KindString, KindNumber, KindBoolean:
		return t.Kind == lit.Primitive()
	case KindLiteral:
		return t.Literal.Equal(lit)
	case KindAlias:
		if seen[t.Alias] {
			return false
		}
		seen[t.Alias] = true
		for _, alt := range t.Alias.Alternatives {
			if admits(alt, lit, seen) {
				return true
			}
		}
	case KindUnion:
		for _, alt := range t.Alternatives {
			if admits(alt, lit, seen) {
				return true
			}
		}
	}
	return false
}
