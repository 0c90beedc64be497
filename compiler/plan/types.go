// Package plan computes, per table, the type shapes a generated client
// exposes: the item, stored, add and get argument shapes, the range query
// surface and the subscription event. Plans are plain data and carry
// json, yaml and msgpack tags so they can be handed to an external emitter.
package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKind is the kind of a planned type.
type TypeKind string

// Planned type kinds.
const (
	TypeString  TypeKind = "string"
	TypeNumber  TypeKind = "number"
	TypeBoolean TypeKind = "boolean"
	TypeDate    TypeKind = "date"
	TypeLiteral TypeKind = "literal"
	// TypeAlias names a type alias of the schema.
	TypeAlias TypeKind = "alias"
	TypeArray TypeKind = "array"
	TypeUnion TypeKind = "union"
	// TypeObject is an inline shape.
	TypeObject TypeKind = "object"
	// TypeShapeRef names a shape of another table plan, for example
	// "PostAddArgs".
	TypeShapeRef TypeKind = "ref"
)

// Type is a planned type expression.
type Type struct {
	Kind TypeKind `json:"kind" yaml:"kind" msgpack:"kind"`
	// Literal holds the string, int64, float64 or bool value of a
	// TypeLiteral.
	Literal any `json:"literal,omitempty" yaml:"literal,omitempty" msgpack:"literal,omitempty"`
	// Name is the alias or shape name of TypeAlias and TypeShapeRef.
	Name         string  `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name,omitempty"`
	Elem         *Type   `json:"elem,omitempty" yaml:"elem,omitempty" msgpack:"elem,omitempty"`
	Alternatives []*Type `json:"alternatives,omitempty" yaml:"alternatives,omitempty" msgpack:"alternatives,omitempty"`
	Shape        *Shape  `json:"shape,omitempty" yaml:"shape,omitempty" msgpack:"shape,omitempty"`
}

// Ref returns a reference to a named shape.
func Ref(name string) *Type { return &Type{Kind: TypeShapeRef, Name: name} }

// Object returns an inline shape type.
func Object(s *Shape) *Type { return &Type{Kind: TypeObject, Shape: s} }

// Union returns the union of ts, or ts[0] if there is only one.
func Union(ts ...*Type) *Type {
	if len(ts) == 1 {
		return ts[0]
	}
	return &Type{Kind: TypeUnion, Alternatives: ts}
}

// String renders the type in schema syntax, objects as {name: type}.
func (t *Type) String() string {
	switch t.Kind {
	case TypeLiteral:
		return literalString(t.Literal)
	case TypeDate:
		return "Date"
	case TypeAlias, TypeShapeRef:
		return t.Name
	case TypeArray:
		return "Array<" + t.Elem.String() + ">"
	case TypeUnion:
		parts := make([]string, len(t.Alternatives))
		for i, a := range t.Alternatives {
			parts[i] = a.String()
		}
		return strings.Join(parts, " | ")
	case TypeObject:
		return t.Shape.String()
	}
	return string(t.Kind)
}

func literalString(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	}
	return fmt.Sprint(v)
}

// Shape is an ordered set of named properties.
type Shape struct {
	Name       string      `json:"name" yaml:"name" msgpack:"name"`
	Properties []*Property `json:"properties" yaml:"properties" msgpack:"properties"`
}

// Property returns the property with the given name, or nil.
func (s *Shape) Property(name string) *Property {
	for _, p := range s.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// String renders the shape as {name: type, optional?: type}.
func (s *Shape) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range s.Properties {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if p.Optional {
			b.WriteByte('?')
		}
		b.WriteString(": ")
		b.WriteString(p.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Property is one field of a shape.
type Property struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	Type *Type  `json:"type" yaml:"type" msgpack:"type"`
	// Optional properties may be omitted by the caller.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty" msgpack:"optional,omitempty"`
	// Default is the value stored when an optional property is omitted.
	// It keeps the literal's type: string, int64, float64 or bool.
	Default any `json:"default,omitempty" yaml:"default,omitempty" msgpack:"default,omitempty"`
	// HasDefault tells a zero Default from no default.
	HasDefault bool `json:"hasDefault,omitempty" yaml:"hasDefault,omitempty" msgpack:"hasDefault,omitempty"`
	// Join is the item name of the joined table, if any.
	Join string `json:"join,omitempty" yaml:"join,omitempty" msgpack:"join,omitempty"`
}

// Operation names of the range query surface.
const (
	OpIsEqualTo              = "isEqualTo"
	OpIsGreaterThan          = "isGreaterThan"
	OpIsGreaterThanOrEqualTo = "isGreaterThanOrEqualTo"
	OpIsLessThan             = "isLessThan"
	OpIsLessThanOrEqualTo    = "isLessThanOrEqualTo"
	OpIsBetween              = "isBetween"
)

// Operations lists the range query operations in canonical order.
var Operations = []string{
	OpIsEqualTo,
	OpIsGreaterThan,
	OpIsGreaterThanOrEqualTo,
	OpIsLessThan,
	OpIsLessThanOrEqualTo,
	OpIsBetween,
}

// Param is a named operation parameter.
type Param struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	Type *Type  `json:"type" yaml:"type" msgpack:"type"`
}

// Operation is one range query over an index. Its result is a lazy,
// finite sequence of items ordered by the index.
type Operation struct {
	Name   string   `json:"name" yaml:"name" msgpack:"name"`
	Params []*Param `json:"params" yaml:"params" msgpack:"params"`
	// Result names the item shape of the sequence elements.
	Result string `json:"result" yaml:"result" msgpack:"result"`
}

// RangeIndex is the range query surface of one index.
type RangeIndex struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	// Kind is "key" or "index".
	Kind   string   `json:"kind" yaml:"kind" msgpack:"kind"`
	Fields []string `json:"fields" yaml:"fields" msgpack:"fields"`
	Unique bool     `json:"unique,omitempty" yaml:"unique,omitempty" msgpack:"unique,omitempty"`
	// Value is the type of one index position: the field type for a
	// single field index, an object of the fields for a compound one.
	Value      *Type        `json:"value" yaml:"value" msgpack:"value"`
	Operations []*Operation `json:"operations" yaml:"operations" msgpack:"operations"`
}

// Operation returns the operation with the given name, or nil.
func (r *RangeIndex) Operation(name string) *Operation {
	for _, op := range r.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// Event kinds of the subscription event.
const (
	EventAdd    = "add"
	EventPut    = "put"
	EventDelete = "delete"
)

// EventVariant is one alternative of the subscription event union.
type EventVariant struct {
	Kind    string `json:"kind" yaml:"kind" msgpack:"kind"`
	Payload *Type  `json:"payload" yaml:"payload" msgpack:"payload"`
}

// GetArg is one alternative of the get argument union.
type GetArg struct {
	// Index is the name of the index the alternative looks up.
	Index string `json:"index" yaml:"index" msgpack:"index"`
	// Bare marks the primary key scalar alternative.
	Bare bool  `json:"bare,omitempty" yaml:"bare,omitempty" msgpack:"bare,omitempty"`
	Type *Type `json:"type" yaml:"type" msgpack:"type"`
}

// TableShapePlan holds the shapes of one table.
type TableShapePlan struct {
	Database string `json:"database" yaml:"database" msgpack:"database"`
	Table    string `json:"table" yaml:"table" msgpack:"table"`
	// ID is the table identity within the schema.
	ID int `json:"id" yaml:"id" msgpack:"id"`
	// Key names the primary key field.
	Key           string `json:"key" yaml:"key" msgpack:"key"`
	AutoIncrement bool   `json:"autoIncrement,omitempty" yaml:"autoIncrement,omitempty" msgpack:"autoIncrement,omitempty"`
	// KeyType is the primary key scalar type.
	KeyType *Type `json:"keyType" yaml:"keyType" msgpack:"keyType"`

	Item         *Shape          `json:"item" yaml:"item" msgpack:"item"`
	Stored       *Shape          `json:"stored" yaml:"stored" msgpack:"stored"`
	AddArgs      *Shape          `json:"addArgs" yaml:"addArgs" msgpack:"addArgs"`
	GetArgs      []*GetArg       `json:"getArgs" yaml:"getArgs" msgpack:"getArgs"`
	RangeIndexes []*RangeIndex   `json:"rangeIndexes" yaml:"rangeIndexes" msgpack:"rangeIndexes"`
	Event        []*EventVariant `json:"subscriptionEvent" yaml:"subscriptionEvent" msgpack:"subscriptionEvent"`
}

// GetArgsType returns the get argument union.
func (p *TableShapePlan) GetArgsType() *Type {
	ts := make([]*Type, len(p.GetArgs))
	for i, a := range p.GetArgs {
		ts[i] = a.Type
	}
	return Union(ts...)
}

// EventType returns the subscription event union.
func (p *TableShapePlan) EventType() *Type {
	ts := make([]*Type, len(p.Event))
	for i, e := range p.Event {
		ts[i] = Object(&Shape{Properties: []*Property{
			{Name: "kind", Type: &Type{Kind: TypeLiteral, Literal: e.Kind}},
			{Name: "payload", Type: e.Payload},
		}})
	}
	return Union(ts...)
}

// RangeIndex returns the range surface of the named index, or nil.
func (p *TableShapePlan) RangeIndex(name string) *RangeIndex {
	for _, r := range p.RangeIndexes {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// AddArgsName returns the name of the add argument shape of an item.
func AddArgsName(item string) string { return item + "AddArgs" }

// StoredName returns the name of the stored shape of an item.
func StoredName(item string) string { return item + "Stored" }

// GetArgsName returns the name of the get argument union of an item.
func GetArgsName(item string) string { return item + "GetArgs" }

// EventName returns the name of the subscription event of an item.
func EventName(item string) string { return item + "Event" }

// AliasPlan is a type alias of the schema.
type AliasPlan struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	Type *Type  `json:"type" yaml:"type" msgpack:"type"`
}

// DatabasePlan groups the table plans of one database.
type DatabasePlan struct {
	Name    string            `json:"name" yaml:"name" msgpack:"name"`
	Version int               `json:"version" yaml:"version" msgpack:"version"`
	Tables  []*TableShapePlan `json:"tables" yaml:"tables" msgpack:"tables"`
}

// Schema is the plan of a whole schema.
type Schema struct {
	Aliases   []*AliasPlan    `json:"aliases,omitempty" yaml:"aliases,omitempty" msgpack:"aliases,omitempty"`
	Databases []*DatabasePlan `json:"databases" yaml:"databases" msgpack:"databases"`
}

// Tables returns the table plans of every database.
func (s *Schema) Tables() []*TableShapePlan {
	var ts []*TableShapePlan
	for _, db := range s.Databases {
		ts = append(ts, db.Tables...)
	}
	return ts
}

// Table returns the plan of the named table, or nil.
func (s *Schema) Table(name string) *TableShapePlan {
	for _, t := range s.Tables() {
		if t.Table == name {
			return t
		}
	}
	return nil
}
