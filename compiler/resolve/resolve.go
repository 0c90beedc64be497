package resolve

import (
	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
)

// Options control resolution.
type Options struct {
	// Mode selects whether resolution stops at the first table with
	// errors or resolves every table.
	Mode diag.Mode
	// LenientAnnotations skips unknown annotations instead of reporting
	// them. Skipped annotations are listed in Schema.Ignored.
	LenientAnnotations bool
}

// Resolve builds the semantic model of a parsed schema. It never fails as
// a whole: errors are recorded on the schema or on the table that owns
// them, see Schema.AllDiagnostics.
func Resolve(tree *ast.Schema, opts Options) *Schema {
	s := &Schema{
		AST:     tree,
		aliases: make(map[string]*Alias),
		items:   make(map[string][]*Table),
	}
	s.resolveDefinitions(tree.Databases(), opts.LenientAnnotations)
	s.resolveItems()
	s.resolveAliases(tree.Types())
	if opts.Mode == diag.FailFast && len(s.Diagnostics) > 0 {
		return s
	}
	for _, t := range s.Tables {
		s.ResolveTable(t)
		if opts.Mode == diag.FailFast && !t.OK() {
			break
		}
	}
	return s
}

// resolveAliases registers the type aliases, then resolves their
// alternatives so aliases may refer to each other in any order.
func (s *Schema) resolveAliases(defs []*ast.TypeDefinition) {
	for _, def := range defs {
		name := def.Name.Value
		if prev := s.aliases[name]; prev != nil {
			s.Diagnostics.Add(diag.New(diag.DuplicateDefinition, def.Name.Loc, "type %q is already defined", name).
				WithRelated(prev.Def.Name.Loc))
			continue
		}
		a := &Alias{Def: def, Name: name}
		s.aliases[name] = a
		s.Aliases = append(s.Aliases, a)
	}
	for _, a := range s.Aliases {
		for _, n := range a.Def.Alternatives {
			if ref, ok := n.(*ast.TypeReference); ok {
				if errs := s.checkReference(ref, true, false); len(errs) > 0 {
					s.Diagnostics.Add(errs...)
					continue
				}
			}
			if vt := s.valueType(n); vt != nil {
				a.Alternatives = append(a.Alternatives, vt)
			}
		}
	}
	s.checkAliasCycles()
}

// checkAliasCycles reports aliases that only ever expand to aliases of
// the same cycle and so denote no value at all.
func (s *Schema) checkAliasCycles() {
	grounded := make(map[*Alias]bool)
	for changed := true; changed; {
		changed = false
		for _, a := range s.Aliases {
			if grounded[a] {
				continue
			}
			for _, alt := range a.Alternatives {
				if alt.Kind != KindAlias || grounded[alt.Alias] {
					grounded[a], changed = true, true
					break
				}
			}
		}
	}
	for _, a := range s.Aliases {
		if !grounded[a] && len(a.Alternatives) == len(a.Def.Alternatives) {
			s.Diagnostics.Add(diag.New(diag.UnknownTypeReference, a.Def.Name.Loc,
				"type %q is defined only in terms of itself", a.Name))
		}
	}
}

// resolveDefinitions builds databases, tables and fields with their
// annotation facts. Duplicate names are reported in the enclosing scope
// and the duplicate is dropped.
func (s *Schema) resolveDefinitions(dbs []*ast.DatabaseDefinition, lenient bool) {
	seen := make(map[string]*Database)
	for _, def := range dbs {
		if prev := seen[def.Name.Value]; prev != nil {
			s.Diagnostics.Add(diag.New(diag.DuplicateDefinition, def.Name.Loc, "database %q is already defined", def.Name.Value).
				WithRelated(prev.Def.Name.Loc))
			continue
		}
		facts, ignored, errs := ResolveDatabaseAnnotations(def, lenient)
		s.Ignored = append(s.Ignored, ignored...)
		s.Diagnostics.Add(errs...)
		db := &Database{Def: def, Name: def.Name.Value, Version: facts.Version, Facts: facts}
		seen[db.Name] = db
		s.Databases = append(s.Databases, db)
		tables := make(map[string]*Table)
		for _, tdef := range def.Tables {
			if prev := tables[tdef.Name.Value]; prev != nil {
				s.Diagnostics.Add(diag.New(diag.DuplicateDefinition, tdef.Name.Loc,
					"table %q is already defined in database %q", tdef.Name.Value, db.Name).WithRelated(prev.Def.Name.Loc))
				continue
			}
			t := s.newTable(db, tdef, lenient)
			tables[t.Name] = t
			db.Tables = append(db.Tables, t)
		}
	}
}

func (s *Schema) newTable(db *Database, def *ast.TableDefinition, lenient bool) *Table {
	facts, ignored, errs := ResolveTableAnnotations(def, lenient)
	s.Ignored = append(s.Ignored, ignored...)
	t := &Table{
		Def:      def,
		Database: db,
		ID:       len(s.Tables),
		Name:     def.Name.Value,
		ItemName: facts.ItemName,
		Facts:    facts,
		fields:   make(map[string]*Field, len(def.Fields)),
	}
	if t.ItemName == "" {
		t.ItemName = DefaultItemName(t.Name)
	}
	t.Diagnostics.Add(errs...)
	for _, fdef := range def.Fields {
		if prev := t.fields[fdef.Name.Value]; prev != nil {
			t.Diagnostics.Add(diag.New(diag.DuplicateDefinition, fdef.Name.Loc,
				"field %q is already defined in table %q", fdef.Name.Value, t.Name).WithRelated(prev.Def.Name.Loc))
			continue
		}
		facts, ignored, errs := ResolveFieldAnnotations(fdef, lenient)
		s.Ignored = append(s.Ignored, ignored...)
		t.Diagnostics.Add(errs...)
		f := &Field{Def: fdef, Table: t, Name: fdef.Name.Value, Facts: facts}
		t.fields[f.Name] = f
		t.Fields = append(t.Fields, f)
	}
	t.annotationErrs = append(diag.List(nil), t.Diagnostics...)
	s.Tables = append(s.Tables, t)
	return t
}

// resolveItems builds the schema-wide lookup of item and table names. It
// reports item names declared by more than one table and names matching
// more than one table, against each of the tables involved.
func (s *Schema) resolveItems() {
	byItem := make(map[string][]*Table)
	var order []string
	for _, t := range s.Tables {
		if len(byItem[t.ItemName]) == 0 {
			order = append(order, t.ItemName)
		}
		byItem[t.ItemName] = append(byItem[t.ItemName], t)
	}
	for _, name := range order {
		ts := byItem[name]
		if len(ts) < 2 {
			continue
		}
		for _, t := range ts {
			d := diag.New(diag.DuplicateItemAlias, t.Location(),
				"item name %q is declared by %d tables: %s", name, len(ts), tableNames(ts))
			for _, o := range ts {
				if o != t {
					d.WithRelated(o.Location())
				}
			}
			s.Diagnostics.Add(d)
		}
	}
	order = order[:0]
	add := func(name string, t *Table) {
		if len(s.items[name]) == 0 {
			order = append(order, name)
		}
		s.items[name] = append(s.items[name], t)
	}
	for _, t := range s.Tables {
		add(t.ItemName, t)
		if t.Name != t.ItemName {
			add(t.Name, t)
		}
	}
	// A name shared by a table name and another table is ambiguous as a
	// join target whether or not a field refers to it.
	for _, name := range order {
		ts := s.items[name]
		if len(ts) < 2 || onlyItems(ts, name) {
			continue
		}
		for _, t := range ts {
			d := diag.New(diag.AmbiguousJoinTarget, t.LocationOf(name),
				"name %q matches %d tables: %s", name, len(ts), tableNames(ts))
			for _, o := range ts {
				if o != t {
					d.WithRelated(o.LocationOf(name))
				}
			}
			s.Diagnostics.Add(d)
		}
	}
}

// onlyItems reports whether every table of ts declares name as its item
// name. Such collisions are reported as DuplicateItemAlias.
func onlyItems(ts []*Table, name string) bool {
	for _, t := range ts {
		if t.ItemName != name {
			return false
		}
	}
	return true
}

// ResolveTable runs the index, join and default resolvers on t and
// records their results and errors on the table. It only reads the
// schema, so it may be called again for the same table.
func (s *Schema) ResolveTable(t *Table) {
	t.Diagnostics = append(diag.List(nil), t.annotationErrs...)
	indexes, errs := ResolveIndexes(t)
	t.Diagnostics.Add(errs...)
	joins, errs := ResolveJoins(t, s)
	t.Diagnostics.Add(errs...)
	defaults, errs := ResolveDefaults(t, s)
	t.Diagnostics.Add(errs...)

	t.Indexes, t.Joins, t.Defaults = indexes, joins, defaults
	for _, f := range t.Fields {
		f.Join, f.Default, f.Type = nil, nil, nil
	}
	for _, j := range joins {
		j.Field.Join = j
	}
	for _, d := range defaults {
		d.Field.Default = d
	}
	if kf := t.KeyField(); kf != nil {
		marker := kf.Facts.marker()
		if kf.Join != nil {
			t.Diagnostics.Add(diag.New(diag.InvalidAnnotationTarget, marker.Loc,
				"primary key %q of table %q cannot join table %q", kf.Name, t.Name, kf.Join.Target.Name))
		}
		if kf.Default != nil {
			t.Diagnostics.Add(diag.New(diag.InvalidAnnotationTarget, marker.Loc,
				"primary key %q of table %q cannot have a default value", kf.Name, t.Name))
		}
	}
	if !t.OK() {
		return
	}
	for _, f := range t.Fields {
		f.Type = s.FieldType(f)
	}
}
