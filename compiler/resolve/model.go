// Package resolve derives the semantic schema model from the syntax tree:
// annotation facts, primary keys and indexes, joins between tables, type
// aliases and default values.
package resolve

import (
	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/source"
)

// The following types make up the resolved model. They point at the
// syntax nodes they were derived from and never modify them.
type (
	// Schema is the resolved form of one parsed file.
	Schema struct {
		AST       *ast.Schema
		Databases []*Database
		// Aliases holds the type aliases in declaration order.
		Aliases []*Alias
		// Tables holds every table of every database. A table's ID is
		// its index in this slice.
		Tables []*Table
		// Ignored holds the unknown annotations skipped in lenient mode.
		Ignored []*ast.Annotation
		// Diagnostics holds the schema-wide errors, those that are not
		// owned by a single table.
		Diagnostics diag.List

		aliases map[string]*Alias
		items   map[string][]*Table
	}

	// Database is a resolved database definition.
	Database struct {
		Def     *ast.DatabaseDefinition
		Name    string
		Version int
		Tables  []*Table
		Facts   DatabaseFacts
	}

	// Table is a resolved table definition.
	Table struct {
		Def      *ast.TableDefinition
		Database *Database
		// ID is the stable identity of the table within the schema.
		ID int
		// Name is the declared table name.
		Name string
		// ItemName is the @item alias, or the capitalized table name.
		ItemName string
		Facts    TableFacts
		Fields   []*Field
		// Indexes holds the primary key first, then the secondary
		// indexes in order of first declaration.
		Indexes  []*TableIndex
		Joins    []*JoinRelation
		Defaults []*DefaultValue
		// Diagnostics holds the errors found in this table.
		Diagnostics diag.List

		fields         map[string]*Field
		annotationErrs diag.List
	}

	// Field is a resolved field definition.
	Field struct {
		Def   *ast.FieldDefinition
		Table *Table
		Name  string
		Facts FieldFacts
		// Type is the value type of the field with its default literal
		// removed. It is set once the table resolved without errors.
		Type    *ValueType
		Join    *JoinRelation
		Default *DefaultValue
	}

	// TableIndex is the primary key or a secondary index of a table.
	TableIndex struct {
		Name string
		Kind IndexKind
		// Fields are the indexed fields in declaration order. A key
		// index has exactly one.
		Fields []*Field
		Unique bool
		// AutoIncrement marks a key assigned on insertion.
		AutoIncrement bool
		// Loc is the first annotation that declared the index.
		Loc source.Location
	}

	// JoinRelation records a field that stores the key of another table.
	JoinRelation struct {
		Owner     *Table
		Field     *Field
		Target    *Table
		Reference *ast.TypeReference
	}

	// DefaultValue is the literal written when a field is omitted on add.
	DefaultValue struct {
		Field   *Field
		Literal *Literal
	}

	// Alias is a resolved standalone type definition.
	Alias struct {
		Def          *ast.TypeDefinition
		Name         string
		Alternatives []*ValueType
	}
)

// IndexKind tells primary keys from secondary indexes.
type IndexKind uint8

// Index kinds.
const (
	IndexKey IndexKind = iota + 1
	IndexSecondary
)

// String returns "key" or "index".
func (k IndexKind) String() string {
	if k == IndexKey {
		return "key"
	}
	return "index"
}

// Compound reports whether the index spans more than one field.
func (i *TableIndex) Compound() bool { return len(i.Fields) > 1 }

// FieldNames returns the names of the indexed fields.
func (i *TableIndex) FieldNames() []string {
	names := make([]string, len(i.Fields))
	for i, f := range i.Fields {
		names[i] = f.Name
	}
	return names
}

// Key returns the primary key index of the table, or nil.
func (t *Table) Key() *TableIndex {
	if len(t.Indexes) > 0 && t.Indexes[0].Kind == IndexKey {
		return t.Indexes[0]
	}
	return nil
}

// KeyField returns the primary key field of the table, or nil.
func (t *Table) KeyField() *Field {
	if k := t.Key(); k != nil {
		return k.Fields[0]
	}
	return nil
}

// Field returns the field with the given name, or nil.
func (t *Table) Field(name string) *Field {
	return t.fields[name]
}

// Index returns the index with the given name, or nil.
func (t *Table) Index(name string) *TableIndex {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// OK reports whether the table resolved without errors.
func (t *Table) OK() bool { return len(t.Diagnostics) == 0 }

// Location returns the location used to report errors about the table
// as a join target: its @item annotation if any, its name otherwise.
func (t *Table) Location() source.Location {
	if a := t.Facts.Item; a != nil {
		return a.Loc
	}
	return t.Def.Name.Loc
}

// LocationOf returns where the table declares name: its @item annotation
// for the item name, its table name otherwise.
func (t *Table) LocationOf(name string) source.Location {
	if name == t.ItemName {
		return t.Location()
	}
	return t.Def.Name.Loc
}

// Alias returns the type alias with the given name, or nil.
func (s *Schema) Alias(name string) *Alias { return s.aliases[name] }

// Lookup returns the tables whose item name or table name is name.
func (s *Schema) Lookup(name string) []*Table { return s.items[name] }

// Table returns the first table with the given name, or nil.
func (s *Schema) Table(name string) *Table {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AllDiagnostics returns the schema-wide and table diagnostics, sorted
// by location and without duplicates.
func (s *Schema) AllDiagnostics() diag.List {
	var l diag.List
	l.Add(s.Diagnostics...)
	for _, t := range s.Tables {
		l.Add(t.Diagnostics...)
	}
	l.Sort()
	return l.Dedupe()
}
