package gen

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/kvgen/compiler/plan"
)

// sharedFile is the name of the file holding the declarations used by
// every database file.
const sharedFile = "kv.go"

// emitter renders plans into jennifer files.
type emitter struct {
	cfg     *Config
	aliases map[string]*plan.AliasPlan
	// items maps item names to the item shapes of their tables.
	items map[string]*plan.Shape
}

func newEmitter(cfg *Config, p *plan.Schema) *emitter {
	e := &emitter{
		cfg:     cfg,
		aliases: make(map[string]*plan.AliasPlan, len(p.Aliases)),
		items:   make(map[string]*plan.Shape),
	}
	for _, a := range p.Aliases {
		e.aliases[a.Name] = a
	}
	for _, tp := range p.Tables() {
		e.items[tp.Item.Name] = tp.Item
	}
	return e
}

// Files renders a schema plan into Go source files keyed by file name:
// one file per database and a shared file with aliases and helper types.
func Files(p *plan.Schema, cfg *Config) (map[string]*jen.File, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	e := newEmitter(cfg, p)
	files := map[string]*jen.File{sharedFile: e.shared(p)}
	for _, db := range p.Databases {
		files[FileName(db.Name)] = e.database(db)
	}
	return files, nil
}

// FileName returns the file name of a database.
func FileName(db string) string {
	return strings.ToLower(pascal(db)) + ".go"
}

func (e *emitter) newFile() *jen.File {
	f := jen.NewFile(e.cfg.Package)
	if e.cfg.Header != "" {
		f.HeaderComment(e.cfg.Header)
	}
	return f
}

// shared renders the type aliases and the helper types.
func (e *emitter) shared(p *plan.Schema) *jen.File {
	f := e.newFile()
	f.Comment("Ref is a join value on add: the key of an existing row, or the")
	f.Comment("arguments of a row to add along with it.")
	f.Type().Id("Ref").Types(jen.Id("K").Id("any"), jen.Id("A").Id("any")).Struct(
		jen.Id("Key").Id("K").Tag(map[string]string{"json": "key,omitempty"}),
		jen.Id("New").Op("*").Id("A").Tag(map[string]string{"json": "new,omitempty"}),
	)
	f.Comment("RefKey returns a Ref to an existing row.")
	f.Func().Id("RefKey").Types(jen.Id("K").Id("any"), jen.Id("A").Id("any")).
		Params(jen.Id("key").Id("K")).Id("Ref").Types(jen.Id("K"), jen.Id("A")).
		Block(jen.Return(jen.Id("Ref").Types(jen.Id("K"), jen.Id("A")).Values(jen.Dict{jen.Id("Key"): jen.Id("key")})))
	f.Comment("RefNew returns a Ref to a row added with args.")
	f.Func().Id("RefNew").Types(jen.Id("K").Id("any"), jen.Id("A").Id("any")).
		Params(jen.Id("args").Id("A")).Id("Ref").Types(jen.Id("K"), jen.Id("A")).
		Block(jen.Return(jen.Id("Ref").Types(jen.Id("K"), jen.Id("A")).Values(jen.Dict{jen.Id("New"): jen.Op("&").Id("args")})))
	f.Line()

	f.Comment("EventKind is the kind of a subscription event.")
	f.Type().Id("EventKind").String()
	f.Const().DefsFunc(func(g *jen.Group) {
		for _, k := range []string{plan.EventAdd, plan.EventPut, plan.EventDelete} {
			g.Id("Event" + pascal(k)).Id("EventKind").Op("=").Lit(k)
		}
	})

	f.Comment("Index describes a primary key or secondary index.")
	f.Type().Id("Index").Struct(
		jen.Id("Name").String(),
		jen.Id("Fields").Index().String(),
		jen.Id("Unique").Bool(),
	)
	f.Comment("Table describes a table and its indexes.")
	f.Type().Id("Table").Struct(
		jen.Id("Database").String(),
		jen.Id("Name").String(),
		jen.Id("Version").Int(),
		jen.Id("Key").Id("Index"),
		jen.Id("AutoIncrement").Bool(),
		jen.Id("Indexes").Index().Id("Index"),
	)

	for _, a := range p.Aliases {
		e.alias(f, a)
	}
	return f
}

func (e *emitter) alias(f *jen.File, a *plan.AliasPlan) {
	name := pascal(a.Name)
	f.Commentf("%s is the schema type %s.", name, a.Type)
	f.Type().Id(name).Add(e.code(a.Type, true))
	consts := e.aliasConsts(a)
	if len(consts) == 0 {
		return
	}
	f.Const().DefsFunc(func(g *jen.Group) {
		for _, c := range consts {
			g.Id(c.name).Id(name).Op("=").Lit(c.value)
		}
	})
}

type aliasConst struct {
	name  string
	value string
}

// aliasConsts returns a constant per string literal of a string alias.
// Literals without a usable Go name get no constant.
func (e *emitter) aliasConsts(a *plan.AliasPlan) []aliasConst {
	if e.key(a.Type, true) != "string" {
		return nil
	}
	name := pascal(a.Name)
	seen := make(map[string]bool)
	var consts []aliasConst
	for _, alt := range alternatives(a.Type) {
		s, ok := alt.Literal.(string)
		if alt.Kind != plan.TypeLiteral || !ok {
			continue
		}
		c := name + pascal(s)
		if c == name || seen[c] || !isExported(c) {
			continue
		}
		seen[c] = true
		consts = append(consts, aliasConst{name: c, value: s})
	}
	return consts
}

func alternatives(t *plan.Type) []*plan.Type {
	if t.Kind == plan.TypeUnion {
		return t.Alternatives
	}
	return []*plan.Type{t}
}

func (e *emitter) database(db *plan.DatabasePlan) *jen.File {
	f := e.newFile()
	f.Commentf("%sVersion is the schema version of database %s.", pascal(db.Name), db.Name)
	f.Const().Id(pascal(db.Name) + "Version").Op("=").Lit(db.Version)
	for _, tp := range db.Tables {
		e.table(f, db, tp)
	}
	return f
}

func (e *emitter) table(f *jen.File, db *plan.DatabasePlan, tp *plan.TableShapePlan) {
	item := pascal(tp.Item.Name)

	f.Commentf("%s is an item of table %s.", item, tp.Table)
	e.itemStruct(f, item, tp.Item)
	f.Commentf("%s is the stored form of %s, with joins as keys.", pascal(tp.Stored.Name), item)
	f.Type().Id(pascal(tp.Stored.Name)).Struct(e.fields(tp.Stored)...)
	e.addArgs(f, tp)
	e.getArgs(f, tp)
	e.ranges(f, tp)
	e.event(f, tp)
	e.descriptor(f, db, tp)
}

// itemStruct declares the struct name of item shape s, followed by the
// structs of its expanded joins.
func (e *emitter) itemStruct(f *jen.File, name string, s *plan.Shape) {
	var nested []*joinType
	f.Type().Id(name).Struct(e.fieldsFunc(s, func(p *plan.Property) *jen.Statement {
		jt := e.expanded(name, p)
		if jt == nil {
			return e.propertyType(p)
		}
		if jt.Shape != nil {
			nested = append(nested, jt)
		}
		return jen.Id(jt.Name)
	})...)
	for _, jt := range nested {
		f.Commentf("%s is the %s joined to a %s.", jt.Name, pascal(jt.Shape.Name), name)
		e.itemStruct(f, jt.Name, jt.Shape)
	}
}

// joinType is the Go type of an expanded join. Shape is nil when the
// join uses the item type of its target.
type joinType struct {
	Name  string
	Shape *plan.Shape
}

// expanded returns the Go type of property p of struct owner, or nil if
// p is not an expanded join. A join expanded to the same shape as its
// target's item reuses that type. Otherwise the join gets a struct named
// after owner and p.
func (e *emitter) expanded(owner string, p *plan.Property) *joinType {
	if p.Join == "" || p.Type.Kind != plan.TypeObject {
		return nil
	}
	if target := e.items[p.Join]; target != nil && e.shapeKey(target) == e.shapeKey(p.Type.Shape) {
		return &joinType{Name: pascal(target.Name)}
	}
	return &joinType{Name: owner + pascal(p.Name), Shape: p.Type.Shape}
}

// joinTypes returns the names of the structs declared for the expanded
// joins of item shape s of struct owner, at every depth.
func (e *emitter) joinTypes(owner string, s *plan.Shape) []string {
	var names []string
	for _, p := range s.Properties {
		if jt := e.expanded(owner, p); jt != nil && jt.Shape != nil {
			names = append(names, jt.Name)
			names = append(names, e.joinTypes(jt.Name, jt.Shape)...)
		}
	}
	return names
}

func (e *emitter) shapeKey(s *plan.Shape) string {
	return e.key(plan.Object(s), false)
}

// fields renders the properties of a shape as struct fields.
func (e *emitter) fields(s *plan.Shape) []jen.Code {
	return e.fieldsFunc(s, e.propertyType)
}

func (e *emitter) fieldsFunc(s *plan.Shape, typeOf func(*plan.Property) *jen.Statement) []jen.Code {
	fields := make([]jen.Code, 0, len(s.Properties))
	for _, p := range s.Properties {
		tag := p.Name
		typ := typeOf(p)
		if p.Optional {
			tag += ",omitempty"
			if e.pointable(p.Type) {
				typ = jen.Op("*").Add(typ)
			}
		}
		fields = append(fields, jen.Id(pascal(p.Name)).Add(typ).Tag(map[string]string{"json": tag}))
	}
	return fields
}

// propertyType renders a property type. A join on add becomes a Ref of
// the key type and the target's add arguments.
func (e *emitter) propertyType(p *plan.Property) *jen.Statement {
	if p.Join != "" && p.Type.Kind == plan.TypeUnion && len(p.Type.Alternatives) == 2 {
		if ref := p.Type.Alternatives[1]; ref.Kind == plan.TypeShapeRef {
			return jen.Id("Ref").Types(e.code(p.Type.Alternatives[0], false), jen.Id(pascal(ref.Name)))
		}
	}
	return e.code(p.Type, false)
}

// pointable reports whether an optional property of type t is a pointer.
// Interfaces and slices have a nil value already.
func (e *emitter) pointable(t *plan.Type) bool {
	k := e.key(t, false)
	return k != "any" && !strings.HasPrefix(k, "[]")
}

func (e *emitter) addArgs(f *jen.File, tp *plan.TableShapePlan) {
	name := pascal(tp.AddArgs.Name)
	f.Commentf("%s are the arguments to add a %s.", name, pascal(tp.Item.Name))
	f.Type().Id(name).Struct(e.fields(tp.AddArgs)...)

	var defaults []jen.Code
	recv := receiver(name)
	for _, p := range tp.AddArgs.Properties {
		if !p.HasDefault {
			continue
		}
		field := jen.Id(recv).Dot(pascal(p.Name))
		value := e.literal(p.Type, p.Default)
		if !e.pointable(p.Type) {
			defaults = append(defaults, jen.If(field.Clone().Op("==").Nil()).Block(
				field.Clone().Op("=").Add(value),
			))
			continue
		}
		defaults = append(defaults, jen.If(field.Clone().Op("==").Nil()).Block(
			jen.Id("def").Op(":=").Add(value),
			field.Clone().Op("=").Op("&").Id("def"),
		))
	}
	if len(defaults) == 0 {
		return
	}
	f.Comment("ApplyDefaults sets the omitted fields that have a default value.")
	f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("ApplyDefaults").Params().Block(defaults...)
}

// literal renders a default value as a value of type t.
func (e *emitter) literal(t *plan.Type, v any) *jen.Statement {
	if n, ok := v.(int64); ok {
		v = float64(n)
	}
	if t.Kind == plan.TypeAlias {
		return jen.Id(pascal(t.Name)).Call(jen.Lit(v))
	}
	return jen.Lit(v)
}

// getArgsName returns the Go name of a get argument alternative.
func getArgsName(item string, a *plan.GetArg) string {
	if a.Bare {
		return item + "Key"
	}
	return item + "By" + pascal(a.Index)
}

func (e *emitter) getArgs(f *jen.File, tp *plan.TableShapePlan) {
	item := pascal(tp.Item.Name)
	iface := pascal(plan.GetArgsName(tp.Item.Name))
	marker := "is" + iface

	f.Commentf("%s looks up a %s by one of its indexes. It is one of", iface, item)
	names := make([]string, len(tp.GetArgs))
	for i, a := range tp.GetArgs {
		names[i] = getArgsName(item, a)
	}
	f.Comment(strings.Join(names, ", ") + ".")
	f.Type().Id(iface).Interface(jen.Id(marker).Params())

	for i, a := range tp.GetArgs {
		name := names[i]
		if a.Bare {
			f.Commentf("%s is the primary key of a %s.", name, item)
			f.Type().Id(name).Add(e.code(a.Type, false))
		} else {
			f.Commentf("%s looks up a %s by index %s.", name, item, a.Index)
			f.Type().Id(name).Struct(e.fields(a.Type.Shape)...)
		}
		f.Func().Params(jen.Id(name)).Id(marker).Params().Block()
	}
}

func (e *emitter) ranges(f *jen.File, tp *plan.TableShapePlan) {
	item := pascal(tp.Item.Name)
	var methods []jen.Code
	for _, r := range tp.RangeIndexes {
		name := item + "By" + pascal(r.Name) + "Range"
		value := e.code(r.Value, false)
		if r.Value.Kind == plan.TypeObject {
			value = jen.Id(item + "By" + pascal(r.Name))
		}
		var ops []jen.Code
		for _, op := range r.Operations {
			params := make([]jen.Code, len(op.Params))
			for i, p := range op.Params {
				params[i] = jen.Id(p.Name).Add(value.Clone())
			}
			ops = append(ops, jen.Id(pascal(op.Name)).Params(params...).Qual("iter", "Seq").Types(jen.Id(pascal(op.Result))))
		}
		f.Commentf("%s queries %s items in the order of index %s.", name, item, r.Name)
		f.Type().Id(name).Interface(ops...)
		methods = append(methods, jen.Id("By"+pascal(r.Name)).Params().Id(name))
	}
	f.Commentf("%sIndexes gives access to the range queries of every index.", item)
	f.Type().Id(item + "Indexes").Interface(methods...)
}

func (e *emitter) event(f *jen.File, tp *plan.TableShapePlan) {
	name := pascal(plan.EventName(tp.Item.Name))
	f.Commentf("%s is a change of table %s: Item is set for add and put, Key for delete.", name, tp.Table)
	f.Type().Id(name).Struct(
		jen.Id("Kind").Id("EventKind").Tag(map[string]string{"json": "kind"}),
		jen.Id("Item").Op("*").Id(pascal(tp.Item.Name)).Tag(map[string]string{"json": "item,omitempty"}),
		jen.Id("Key").Op("*").Add(e.code(tp.KeyType, false)).Tag(map[string]string{"json": "key,omitempty"}),
	)
}

// descriptor renders the Table value of tp.
func (e *emitter) descriptor(f *jen.File, db *plan.DatabasePlan, tp *plan.TableShapePlan) {
	index := func(r *plan.RangeIndex) jen.Code {
		fields := make([]jen.Code, len(r.Fields))
		for i, name := range r.Fields {
			fields[i] = jen.Lit(name)
		}
		return jen.Values(jen.Dict{
			jen.Id("Name"):   jen.Lit(r.Name),
			jen.Id("Fields"): jen.Index().String().Values(fields...),
			jen.Id("Unique"): jen.Lit(r.Unique),
		})
	}
	var key jen.Code
	var secondary []jen.Code
	for _, r := range tp.RangeIndexes {
		if r.Kind == "key" {
			key = index(r)
		} else {
			secondary = append(secondary, index(r))
		}
	}
	name := pascal(tp.Item.Name) + "Table"
	f.Commentf("%s describes table %s of database %s.", name, tp.Table, db.Name)
	f.Var().Id(name).Op("=").Id("Table").Values(jen.Dict{
		jen.Id("Database"):      jen.Lit(db.Name),
		jen.Id("Name"):          jen.Lit(tp.Table),
		jen.Id("Version"):       jen.Lit(db.Version),
		jen.Id("Key"):           jen.Id("Index").Add(key),
		jen.Id("AutoIncrement"): jen.Lit(tp.AutoIncrement),
		jen.Id("Indexes"):       jen.Index().Id("Index").Values(secondary...),
	})
}

// key returns the Go type of t as text, used to compare types. deep
// resolves aliases to their underlying type.
func (e *emitter) key(t *plan.Type, deep bool) string {
	return e.keySeen(t, deep, make(map[string]bool))
}

func (e *emitter) keySeen(t *plan.Type, deep bool, seen map[string]bool) string {
	switch t.Kind {
	case plan.TypeString:
		return "string"
	case plan.TypeNumber:
		return "float64"
	case plan.TypeBoolean:
		return "bool"
	case plan.TypeDate:
		return "time.Time"
	case plan.TypeLiteral:
		return literalKey(t.Literal)
	case plan.TypeAlias:
		a := e.aliases[t.Name]
		if !deep || a == nil {
			return pascal(t.Name)
		}
		if seen[t.Name] {
			return "any"
		}
		seen[t.Name] = true
		defer delete(seen, t.Name)
		return e.keySeen(a.Type, deep, seen)
	case plan.TypeArray:
		return "[]" + e.keySeen(t.Elem, false, seen)
	case plan.TypeUnion:
		first := e.keySeen(t.Alternatives[0], deep, seen)
		for _, alt := range t.Alternatives[1:] {
			if e.keySeen(alt, deep, seen) != first {
				return "any"
			}
		}
		return first
	case plan.TypeObject:
		parts := make([]string, len(t.Shape.Properties))
		for i, p := range t.Shape.Properties {
			opt := ""
			if p.Optional {
				opt = "?"
			}
			parts[i] = pascal(p.Name) + opt + " " + e.keySeen(p.Type, false, seen)
		}
		return "struct{" + strings.Join(parts, "; ") + "}"
	case plan.TypeShapeRef:
		return pascal(t.Name)
	}
	panic(fmt.Sprintf("gen: unexpected type kind %q", t.Kind))
}

func literalKey(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	}
	return "float64"
}

// code renders t as a Go type. Unions of different Go types become any.
func (e *emitter) code(t *plan.Type, deep bool) *jen.Statement {
	switch t.Kind {
	case plan.TypeString:
		return jen.String()
	case plan.TypeNumber:
		return jen.Float64()
	case plan.TypeBoolean:
		return jen.Bool()
	case plan.TypeDate:
		return jen.Qual("time", "Time")
	case plan.TypeLiteral:
		return jen.Id(literalKey(t.Literal))
	case plan.TypeAlias:
		if a := e.aliases[t.Name]; deep && a != nil {
			if e.key(t, true) == "any" {
				return jen.Id("any")
			}
			return e.code(a.Type, true)
		}
		return jen.Id(pascal(t.Name))
	case plan.TypeArray:
		return jen.Index().Add(e.code(t.Elem, false))
	case plan.TypeUnion:
		if e.key(t, deep) == "any" {
			return jen.Id("any")
		}
		return e.code(t.Alternatives[0], deep)
	case plan.TypeObject:
		return jen.Struct(e.fields(t.Shape)...)
	case plan.TypeShapeRef:
		return jen.Id(pascal(t.Name))
	}
	panic(fmt.Sprintf("gen: unexpected type kind %q", t.Kind))
}

// Validate checks that the names of a plan map to distinct Go
// identifiers.
func Validate(p *plan.Schema) error {
	declared := map[string]string{
		"Ref":         "helper type",
		"RefKey":      "helper function",
		"RefNew":      "helper function",
		"EventKind":   "helper type",
		"EventAdd":    "event kind",
		"EventPut":    "event kind",
		"EventDelete": "event kind",
		"Index":       "helper type",
		"Table":       "helper type",
	}
	declare := func(table, name, what string) error {
		if !isExported(name) {
			return NewValidationError(table, "", name, fmt.Sprintf("%s %q is not an exported Go identifier", what, name))
		}
		if prev, ok := declared[name]; ok {
			return NewValidationError(table, "", name, fmt.Sprintf("%s %s collides with %s", what, name, prev))
		}
		declared[name] = what
		return nil
	}
	e := newEmitter(&Config{}, p)
	for _, a := range p.Aliases {
		if err := declare("", pascal(a.Name), "type "+a.Name); err != nil {
			return err
		}
		for _, c := range e.aliasConsts(a) {
			if err := declare("", c.name, "constant "+c.value+" of type "+a.Name); err != nil {
				return err
			}
		}
	}
	files := make(map[string]string)
	for _, db := range p.Databases {
		if prev, ok := files[FileName(db.Name)]; ok || FileName(db.Name) == sharedFile {
			return NewValidationError("", "", db.Name, fmt.Sprintf("database %s has the file name of %s", db.Name, orElse(prev, "the shared file")))
		}
		files[FileName(db.Name)] = "database " + db.Name
		if err := declare("", pascal(db.Name)+"Version", "version of database "+db.Name); err != nil {
			return err
		}
		for _, tp := range db.Tables {
			if err := validateTable(e, tp, declare); err != nil {
				return err
			}
		}
	}
	return nil
}

func orElse(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func validateTable(e *emitter, tp *plan.TableShapePlan, declare func(table, name, what string) error) error {
	item := pascal(tp.Item.Name)
	names := []string{
		item,
		pascal(tp.Stored.Name),
		pascal(tp.AddArgs.Name),
		pascal(plan.GetArgsName(tp.Item.Name)),
		pascal(plan.EventName(tp.Item.Name)),
		item + "Indexes",
		item + "Table",
	}
	for _, a := range tp.GetArgs {
		names = append(names, getArgsName(item, a))
	}
	for _, r := range tp.RangeIndexes {
		names = append(names, item+"By"+pascal(r.Name)+"Range")
	}
	names = append(names, e.joinTypes(item, tp.Item)...)
	for _, name := range names {
		if err := declare(tp.Table, name, "declaration of table "+tp.Table); err != nil {
			return err
		}
	}
	fields := make(map[string]string)
	for _, p := range tp.Item.Properties {
		name := pascal(p.Name)
		if prev, ok := fields[name]; ok {
			return NewValidationError(tp.Table, p.Name, name, fmt.Sprintf("field %s collides with %s", name, prev))
		}
		fields[name] = p.Name
	}
	return nil
}

func isExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z' && !strings.ContainsFunc(name, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
}
