package plan

import (
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/kvgen/compiler/resolve"
)

// DefaultJoinDepth is the number of join levels expanded in item shapes.
const DefaultJoinDepth = 1

// ErrUnplannable is matched by errors of tables that can not be planned
// because they, or a table they join, failed to resolve.
var ErrUnplannable = errors.New("plan: table can not be planned")

// TableError reports a table that was left out of the plan.
type TableError struct {
	Table string
	// Dependency is the joined table that failed to resolve, empty
	// when the table itself has errors.
	Dependency string
}

// Error implements the error interface.
func (e *TableError) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("plan: table %q joins table %q which has errors", e.Table, e.Dependency)
	}
	return fmt.Sprintf("plan: table %q has errors", e.Table)
}

// Is reports whether target is ErrUnplannable.
func (e *TableError) Is(target error) bool { return target == ErrUnplannable }

// IsTableError reports whether err is a *TableError.
func IsTableError(err error) bool {
	if err == nil {
		return false
	}
	var e *TableError
	return errors.As(err, &e)
}

// Options control planning.
type Options struct {
	// JoinDepth is the number of join levels expanded in item shapes;
	// zero expands none. Deeper joins, and joins back to a table being
	// expanded, keep the scalar foreign key.
	JoinDepth int
}

type planner struct {
	depth int
}

// Build plans every table of s. Tables that can not be planned are left
// out and reported in the returned error; their own diagnostics are on
// the resolved schema.
func Build(s *resolve.Schema, opts Options) (*Schema, error) {
	p := &planner{depth: opts.JoinDepth}
	plan := &Schema{}
	for _, a := range s.Aliases {
		ts := make([]*Type, len(a.Alternatives))
		for i, alt := range a.Alternatives {
			ts[i] = convert(alt)
		}
		if len(ts) == 0 {
			continue
		}
		plan.Aliases = append(plan.Aliases, &AliasPlan{Name: a.Name, Type: Union(ts...)})
	}
	var errs []error
	for _, db := range s.Databases {
		dp := &DatabasePlan{Name: db.Name, Version: db.Version}
		for _, t := range db.Tables {
			tp, err := p.plan(t)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			dp.Tables = append(dp.Tables, tp)
		}
		plan.Databases = append(plan.Databases, dp)
	}
	return plan, errors.Join(errs...)
}

// PlanTable plans a single table. It fails with a *TableError when the
// table or a table it joins has errors.
func PlanTable(t *resolve.Table, opts Options) (*TableShapePlan, error) {
	return (&planner{depth: opts.JoinDepth}).plan(t)
}

func (p *planner) plan(t *resolve.Table) (*TableShapePlan, error) {
	if err := ready(t, t, make(map[*resolve.Table]bool)); err != nil {
		return nil, err
	}
	key := t.Key()
	keyType := keyType(t)
	tp := &TableShapePlan{
		Database:      t.Database.Name,
		Table:         t.Name,
		ID:            t.ID,
		Key:           key.Fields[0].Name,
		AutoIncrement: key.AutoIncrement,
		KeyType:       keyType,
		Item:          p.item(t, []*resolve.Table{t}, 0),
		Stored:        p.stored(t),
		AddArgs:       p.addArgs(t),
		Event: []*EventVariant{
			{Kind: EventAdd, Payload: Ref(t.ItemName)},
			{Kind: EventPut, Payload: Ref(t.ItemName)},
			{Kind: EventDelete, Payload: keyType},
		},
	}
	tp.GetArgs = append(tp.GetArgs,
		&GetArg{Index: key.Name, Bare: true, Type: keyType},
		&GetArg{Index: key.Name, Type: p.indexObject(key)},
	)
	for _, idx := range t.Indexes {
		if idx.Kind == resolve.IndexSecondary {
			tp.GetArgs = append(tp.GetArgs, &GetArg{Index: idx.Name, Type: p.indexObject(idx)})
		}
		tp.RangeIndexes = append(tp.RangeIndexes, p.rangeIndex(t, idx))
	}
	return tp, nil
}

// ready checks that t and every table reachable through joins resolved
// without errors.
func ready(root, t *resolve.Table, seen map[*resolve.Table]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	if !t.OK() {
		e := &TableError{Table: root.Name}
		if t != root {
			e.Dependency = t.Name
		}
		return e
	}
	for _, j := range t.Joins {
		if err := ready(root, j.Target, seen); err != nil {
			return err
		}
	}
	return nil
}

// keyType is the scalar type of the primary key of t, which is also the
// foreign key type of joins to t.
func keyType(t *resolve.Table) *Type {
	return convert(t.KeyField().Type)
}

// item builds the item shape of t. ancestors holds the tables already
// being expanded on the current path.
func (p *planner) item(t *resolve.Table, ancestors []*resolve.Table, level int) *Shape {
	s := &Shape{Name: t.ItemName}
	for _, f := range t.Fields {
		prop := &Property{Name: f.Name}
		switch j := f.Join; {
		case j == nil:
			prop.Type = convert(f.Type)
		case level < p.depth && !slices.Contains(ancestors, j.Target):
			prop.Type = Object(p.item(j.Target, append(slices.Clip(ancestors), j.Target), level+1))
			prop.Join = j.Target.ItemName
		default:
			prop.Type = keyType(j.Target)
			prop.Join = j.Target.ItemName
		}
		s.Properties = append(s.Properties, prop)
	}
	return s
}

func (p *planner) stored(t *resolve.Table) *Shape {
	s := &Shape{Name: StoredName(t.ItemName)}
	for _, f := range t.Fields {
		prop := &Property{Name: f.Name, Type: p.storedType(f)}
		if f.Join != nil {
			prop.Join = f.Join.Target.ItemName
		}
		s.Properties = append(s.Properties, prop)
	}
	return s
}

func (p *planner) addArgs(t *resolve.Table) *Shape {
	s := &Shape{Name: AddArgsName(t.ItemName)}
	key := t.Key()
	for _, f := range t.Fields {
		if key.AutoIncrement && f == key.Fields[0] {
			continue
		}
		prop := &Property{Name: f.Name, Type: p.storedType(f)}
		if j := f.Join; j != nil {
			prop.Type = Union(keyType(j.Target), Ref(AddArgsName(j.Target.ItemName)))
			prop.Join = j.Target.ItemName
		}
		if d := f.Default; d != nil {
			prop.Optional = true
			prop.Default = d.Literal.Value
			prop.HasDefault = true
		}
		s.Properties = append(s.Properties, prop)
	}
	return s
}

// storedType is the type a field is persisted as: its own type, or the
// foreign key type for joins.
func (p *planner) storedType(f *resolve.Field) *Type {
	if f.Join != nil {
		return keyType(f.Join.Target)
	}
	return convert(f.Type)
}

// indexObject is the object alternative of the get arguments of idx.
func (p *planner) indexObject(idx *resolve.TableIndex) *Type {
	s := &Shape{}
	for _, f := range idx.Fields {
		s.Properties = append(s.Properties, &Property{Name: f.Name, Type: p.storedType(f)})
	}
	return Object(s)
}

func (p *planner) rangeIndex(t *resolve.Table, idx *resolve.TableIndex) *RangeIndex {
	r := &RangeIndex{
		Name:   idx.Name,
		Kind:   idx.Kind.String(),
		Fields: idx.FieldNames(),
		Unique: idx.Unique,
	}
	if idx.Compound() {
		r.Value = p.indexObject(idx)
	} else {
		r.Value = p.storedType(idx.Fields[0])
	}
	for _, name := range Operations {
		op := &Operation{Name: name, Result: t.ItemName}
		if name == OpIsBetween {
			op.Params = []*Param{{Name: "lowerBound", Type: r.Value}, {Name: "upperBound", Type: r.Value}}
		} else {
			op.Params = []*Param{{Name: "value", Type: r.Value}}
		}
		r.Operations = append(r.Operations, op)
	}
	return r
}

// convert maps a resolved value type to a planned type. Joins convert to
// their foreign key type.
func convert(vt *resolve.ValueType) *Type {
	switch vt.Kind {
	case resolve.KindString:
		return &Type{Kind: TypeString}
	case resolve.KindNumber:
		return &Type{Kind: TypeNumber}
	case resolve.KindBoolean:
		return &Type{Kind: TypeBoolean}
	case resolve.KindDate:
		return &Type{Kind: TypeDate}
	case resolve.KindLiteral:
		return &Type{Kind: TypeLiteral, Literal: vt.Literal.Value}
	case resolve.KindAlias:
		return &Type{Kind: TypeAlias, Name: vt.Alias.Name}
	case resolve.KindArray:
		return &Type{Kind: TypeArray, Elem: convert(vt.Elem)}
	case resolve.KindUnion:
		ts := make([]*Type, len(vt.Alternatives))
		for i, alt := range vt.Alternatives {
			ts[i] = convert(alt)
		}
		return Union(ts...)
	case resolve.KindJoin:
		return keyType(vt.Target)
	}
	panic(fmt.Sprintf("plan: unexpected value type %s", vt.Kind))
}
