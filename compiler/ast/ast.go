// Package ast declares the syntax tree of the schema language.
//
// Nodes are plain values built once by the parser and never modified
// afterwards. Later stages refer to them by pointer identity.
package ast

import (
	"strconv"

	"github.com/syssam/kvgen/compiler/source"
)

// The following types make up the syntax tree.
type (
	// Schema is the root of a parsed file.
	Schema struct {
		Definitions []Definition
		Loc         source.Location
	}

	// Identifier is a name in the source.
	Identifier struct {
		Value string
		Loc   source.Location
	}

	// Annotation is an @name(args...) modifier.
	Annotation struct {
		Name      *Identifier
		Arguments []Literal
		Loc       source.Location
	}

	// DatabaseDefinition declares a database and its tables.
	DatabaseDefinition struct {
		Name        *Identifier
		Tables      []*TableDefinition
		Annotations []*Annotation
		Loc         source.Location
	}

	// TableDefinition declares a table and its fields.
	TableDefinition struct {
		Name        *Identifier
		Fields      []*FieldDefinition
		Annotations []*Annotation
		Loc         source.Location
	}

	// FieldDefinition declares a table field. Alternatives holds the
	// members of the declared type union in source order; most fields
	// have exactly one.
	FieldDefinition struct {
		Name         *Identifier
		Annotations  []*Annotation
		Alternatives []TypeNode
		Loc          source.Location
	}

	// TypeDefinition is a standalone union type alias.
	TypeDefinition struct {
		Name         *Identifier
		Alternatives []TypeNode
		Loc          source.Location
	}
)

// Definition is a top-level definition: *DatabaseDefinition or *TypeDefinition.
type Definition interface {
	Location() source.Location
	definition()
}

func (*DatabaseDefinition) definition() {}
func (*TypeDefinition) definition()     {}

// Location returns the span of the node.
func (d *DatabaseDefinition) Location() source.Location { return d.Loc }

// Location returns the span of the node.
func (d *TypeDefinition) Location() source.Location { return d.Loc }

// Location returns the span of the node.
func (d *TableDefinition) Location() source.Location { return d.Loc }

// Location returns the span of the node.
func (d *FieldDefinition) Location() source.Location { return d.Loc }

// Location returns the span of the node.
func (a *Annotation) Location() source.Location { return a.Loc }

// Location returns the span of the node.
func (i *Identifier) Location() source.Location { return i.Loc }

// Databases returns the database definitions of the schema in order.
func (s *Schema) Databases() []*DatabaseDefinition {
	var dbs []*DatabaseDefinition
	for _, d := range s.Definitions {
		if db, ok := d.(*DatabaseDefinition); ok {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Types returns the type alias definitions of the schema in order.
func (s *Schema) Types() []*TypeDefinition {
	var ts []*TypeDefinition
	for _, d := range s.Definitions {
		if td, ok := d.(*TypeDefinition); ok {
			ts = append(ts, td)
		}
	}
	return ts
}

// KeywordKind is a primitive type keyword.
type KeywordKind string

// Primitive keywords.
const (
	KeywordString  KeywordKind = "string"
	KeywordNumber  KeywordKind = "number"
	KeywordBoolean KeywordKind = "boolean"
)

// TypeNode is one alternative of a declared type. It is one of *Keyword,
// *TypeReference, *StringLiteral, *IntegerLiteral, *FloatLiteral or
// *BooleanLiteral.
type TypeNode interface {
	Location() source.Location
	typeNode()
}

// Literal is a literal value: a type alternative that doubles as a default
// value, or an annotation argument.
type Literal interface {
	TypeNode
	// Raw returns the source text of the literal.
	Raw() string
	literal()
}

// The type node variants.
type (
	// Keyword is a primitive type: string, number or boolean.
	Keyword struct {
		Kind KeywordKind
		Loc  source.Location
	}

	// TypeReference names a table, item, alias or builtin type.
	TypeReference struct {
		Name          *Identifier
		TypeArguments []TypeNode
		Loc           source.Location
	}

	// StringLiteral is a quoted string. Value is unquoted.
	StringLiteral struct {
		Value string
		Text  string
		Loc   source.Location
	}

	// IntegerLiteral is a whole number.
	IntegerLiteral struct {
		Value int64
		Text  string
		Loc   source.Location
	}

	// FloatLiteral is a number with a fractional part.
	FloatLiteral struct {
		Value float64
		Text  string
		Loc   source.Location
	}

	// BooleanLiteral is true or false.
	BooleanLiteral struct {
		Value bool
		Loc   source.Location
	}
)

func (*Keyword) typeNode()        {}
func (*TypeReference) typeNode()  {}
func (*StringLiteral) typeNode()  {}
func (*IntegerLiteral) typeNode() {}
func (*FloatLiteral) typeNode()   {}
func (*BooleanLiteral) typeNode() {}

func (*StringLiteral) literal()  {}
func (*IntegerLiteral) literal() {}
func (*FloatLiteral) literal()   {}
func (*BooleanLiteral) literal() {}

func (n *Keyword) Location() source.Location        { return n.Loc }
func (n *TypeReference) Location() source.Location  { return n.Loc }
func (n *StringLiteral) Location() source.Location  { return n.Loc }
func (n *IntegerLiteral) Location() source.Location { return n.Loc }
func (n *FloatLiteral) Location() source.Location   { return n.Loc }
func (n *BooleanLiteral) Location() source.Location { return n.Loc }

func (n *StringLiteral) Raw() string  { return n.Text }
func (n *IntegerLiteral) Raw() string { return n.Text }
func (n *FloatLiteral) Raw() string   { return n.Text }
func (n *BooleanLiteral) Raw() string { return strconv.FormatBool(n.Value) }

// IsLiteral reports whether n is a literal alternative.
func IsLiteral(n TypeNode) bool {
	_, ok := n.(Literal)
	return ok
}

// TypeString renders a type node in source syntax.
func TypeString(n TypeNode) string {
	switch n := n.(type) {
	case *Keyword:
		return string(n.Kind)
	case *TypeReference:
		s := n.Name.Value
		if len(n.TypeArguments) > 0 {
			s += "<"
			for i, a := range n.TypeArguments {
				if i > 0 {
					s += ", "
				}
				s += TypeString(a)
			}
			s += ">"
		}
		return s
	case Literal:
		return n.Raw()
	}
	return "?"
}
