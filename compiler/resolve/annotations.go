package resolve

import (
	"regexp"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
)

// Annotation names.
const (
	AnnotationVersion       = "version"
	AnnotationItem          = "item"
	AnnotationAutoIncrement = "autoincrement"
	AnnotationKey           = "key"
	AnnotationIndex         = "index"
	AnnotationUnique        = "unique"
)

// DefaultVersion is the version of a database without @version.
const DefaultVersion = 1

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// capitalize upper-cases the first letter of s. A cases.Caser is not safe
// for concurrent use, so one is built per call.
func capitalize(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// DatabaseFacts are the validated annotations of a database.
type DatabaseFacts struct {
	Version int
	// VersionAnnotation is the @version annotation, if present.
	VersionAnnotation *ast.Annotation
}

// TableFacts are the validated annotations of a table.
type TableFacts struct {
	// ItemName is the explicit @item alias, empty if not given.
	ItemName string
	// Item is the @item annotation, if present.
	Item *ast.Annotation
}

// IndexAnnotation is one @index occurrence on a field.
type IndexAnnotation struct {
	// Name is the index name: the group argument, or the field name.
	Name string
	// Group is set when the name came from an argument.
	Group      bool
	Annotation *ast.Annotation
}

// FieldFacts are the validated annotations of a field.
type FieldFacts struct {
	AutoIncrement *ast.Annotation
	Key           *ast.Annotation
	// Indexes holds the @index occurrences in annotation order.
	Indexes []IndexAnnotation
	Unique  *ast.Annotation
	// UniqueIndex is the name of the index @unique applies to.
	UniqueIndex string
}

// PrimaryKey reports whether the field is marked as primary key.
func (f FieldFacts) PrimaryKey() bool {
	return f.AutoIncrement != nil || f.Key != nil
}

// marker returns the annotation that made the field a primary key.
func (f FieldFacts) marker() *ast.Annotation {
	if f.AutoIncrement != nil {
		return f.AutoIncrement
	}
	return f.Key
}

// annotationRules checks the cardinality and arity of annotations and
// collects the ones nobody recognizes.
type annotationRules struct {
	lenient bool
	ignored []*ast.Annotation
	errs    diag.List
}

func (r *annotationRules) unknown(a *ast.Annotation, owner string) {
	if r.lenient {
		r.ignored = append(r.ignored, a)
		return
	}
	r.errs.Add(diag.New(diag.UnknownAnnotation, a.Loc, "unknown annotation @%s on %s", a.Name.Value, owner))
}

// once reports a repeated single-occurrence annotation and returns
// false when prev is already set.
func (r *annotationRules) once(prev, a *ast.Annotation) bool {
	if prev == nil {
		return true
	}
	r.errs.Add(diag.New(diag.DuplicateAnnotation, a.Loc, "duplicate @%s annotation", a.Name.Value).WithRelated(prev.Loc))
	return false
}

// arity reports an annotation whose argument count is outside [min, max].
func (r *annotationRules) arity(a *ast.Annotation, min, max int) bool {
	n := len(a.Arguments)
	if n >= min && n <= max {
		return true
	}
	var want string
	switch {
	case max == 0:
		want = "no arguments"
	case min == max:
		want = strconv.Itoa(min) + " argument"
	default:
		want = "at most " + strconv.Itoa(max) + " argument"
	}
	if max > 1 || min > 1 {
		want += "s"
	}
	r.errs.Add(diag.New(diag.InvalidAnnotationArguments, a.Loc, "@%s takes %s, got %d", a.Name.Value, want, n))
	return false
}

// stringArg returns the string argument at i.
func (r *annotationRules) stringArg(a *ast.Annotation, i int) (string, bool) {
	s, ok := a.Arguments[i].(*ast.StringLiteral)
	if !ok {
		r.errs.Add(diag.New(diag.InvalidAnnotationArguments, a.Arguments[i].Location(),
			"@%s expects a string argument, got %s", a.Name.Value, a.Arguments[i].Raw()))
		return "", false
	}
	return s.Value, true
}

// ResolveDatabaseAnnotations validates the annotations of a database.
func ResolveDatabaseAnnotations(db *ast.DatabaseDefinition, lenient bool) (DatabaseFacts, []*ast.Annotation, diag.List) {
	r := &annotationRules{lenient: lenient}
	facts := DatabaseFacts{Version: DefaultVersion}
	for _, a := range db.Annotations {
		switch a.Name.Value {
		case AnnotationVersion:
			if !r.once(facts.VersionAnnotation, a) {
				continue
			}
			facts.VersionAnnotation = a
			if !r.arity(a, 1, 1) {
				continue
			}
			if v, ok := versionArg(a.Arguments[0]); ok {
				facts.Version = v
			} else {
				r.errs.Add(diag.New(diag.InvalidAnnotationArguments, a.Arguments[0].Location(),
					"@version expects a positive integer, got %s", a.Arguments[0].Raw()))
			}
		default:
			r.unknown(a, "database "+strconv.Quote(db.Name.Value))
		}
	}
	return facts, r.ignored, r.errs
}

func versionArg(lit ast.Literal) (int, bool) {
	var v int64
	switch lit := lit.(type) {
	case *ast.IntegerLiteral:
		v = lit.Value
	case *ast.StringLiteral:
		n, err := strconv.ParseInt(lit.Value, 10, 32)
		if err != nil {
			return 0, false
		}
		v = n
	default:
		return 0, false
	}
	if v < 1 || v > 1<<31-1 {
		return 0, false
	}
	return int(v), true
}

// ResolveTableAnnotations validates the annotations of a table.
func ResolveTableAnnotations(t *ast.TableDefinition, lenient bool) (TableFacts, []*ast.Annotation, diag.List) {
	r := &annotationRules{lenient: lenient}
	var facts TableFacts
	for _, a := range t.Annotations {
		switch a.Name.Value {
		case AnnotationItem:
			if !r.once(facts.Item, a) {
				continue
			}
			facts.Item = a
			if !r.arity(a, 0, 1) || len(a.Arguments) == 0 {
				continue
			}
			name, ok := r.stringArg(a, 0)
			if !ok {
				continue
			}
			if !identRe.MatchString(name) {
				r.errs.Add(diag.New(diag.InvalidAnnotationArguments, a.Arguments[0].Location(),
					"@item name %q is not a valid identifier", name))
				continue
			}
			facts.ItemName = name
		default:
			r.unknown(a, "table "+strconv.Quote(t.Name.Value))
		}
	}
	return facts, r.ignored, r.errs
}

// DefaultItemName returns the item name of a table without @item.
func DefaultItemName(table string) string { return capitalize(table) }

// ResolveFieldAnnotations validates the annotations of a field.
func ResolveFieldAnnotations(f *ast.FieldDefinition, lenient bool) (FieldFacts, []*ast.Annotation, diag.List) {
	r := &annotationRules{lenient: lenient}
	var facts FieldFacts
	// position of each @index and of @unique in the annotation list.
	var indexAt []int
	uniqueAt := -1
	for i, a := range f.Annotations {
		switch a.Name.Value {
		case AnnotationAutoIncrement:
			if r.once(facts.AutoIncrement, a) && r.arity(a, 0, 0) {
				facts.AutoIncrement = a
			}
		case AnnotationKey:
			if r.once(facts.Key, a) && r.arity(a, 0, 0) {
				facts.Key = a
			}
		case AnnotationUnique:
			if r.once(facts.Unique, a) && r.arity(a, 0, 0) {
				facts.Unique = a
				uniqueAt = i
			}
		case AnnotationIndex:
			if !r.arity(a, 0, 1) {
				continue
			}
			idx := IndexAnnotation{Name: f.Name.Value, Annotation: a}
			if len(a.Arguments) == 1 {
				name, ok := r.stringArg(a, 0)
				if !ok {
					continue
				}
				if !identRe.MatchString(name) {
					r.errs.Add(diag.New(diag.InvalidAnnotationArguments, a.Arguments[0].Location(),
						"@index name %q is not a valid identifier", name))
					continue
				}
				idx.Name, idx.Group = name, true
			}
			if prev := facts.index(idx.Name); prev != nil {
				r.errs.Add(diag.New(diag.DuplicateAnnotation, a.Loc, "duplicate @index for index %q", idx.Name).
					WithRelated(prev.Annotation.Loc))
				continue
			}
			facts.Indexes = append(facts.Indexes, idx)
			indexAt = append(indexAt, i)
		default:
			r.unknown(a, "field "+strconv.Quote(f.Name.Value))
		}
	}
	if facts.AutoIncrement != nil && facts.Key != nil {
		later := facts.Key
		if later.Loc.Start.Offset < facts.AutoIncrement.Loc.Start.Offset {
			later = facts.AutoIncrement
		}
		r.errs.Add(diag.New(diag.ConflictingPrimaryKey, later.Loc,
			"field %q cannot be both @autoincrement and @key", f.Name.Value))
	}
	if a := facts.AutoIncrement; a != nil && !isNumber(f) {
		r.errs.Add(diag.New(diag.InvalidAnnotationTarget, a.Loc,
			"@autoincrement requires a number field, %q is %s", f.Name.Value, typeText(f)))
	}
	if facts.Unique != nil {
		facts.UniqueIndex = uniqueTarget(facts, indexAt, uniqueAt, f.Name.Value)
		if facts.UniqueIndex == "" {
			r.errs.Add(diag.New(diag.UnresolvedUniqueAnnotation, facts.Unique.Loc,
				"@unique on field %q has no index to apply to", f.Name.Value))
		}
	}
	return facts, r.ignored, r.errs
}

// uniqueTarget picks the index @unique applies to: the field's own index,
// else the nearest @index before it, else the nearest after it. A primary
// key field without indexes is unique already.
func uniqueTarget(facts FieldFacts, indexAt []int, uniqueAt int, field string) string {
	if facts.index(field) != nil {
		return field
	}
	target := -1
	for i, at := range indexAt {
		if at < uniqueAt {
			target = i
		} else if target == -1 {
			target = i
			break
		}
	}
	if target >= 0 {
		return facts.Indexes[target].Name
	}
	if facts.PrimaryKey() {
		return field
	}
	return ""
}

func (f *FieldFacts) index(name string) *IndexAnnotation {
	for i := range f.Indexes {
		if f.Indexes[i].Name == name {
			return &f.Indexes[i]
		}
	}
	return nil
}

func isNumber(f *ast.FieldDefinition) bool {
	if len(f.Alternatives) != 1 {
		return false
	}
	k, ok := f.Alternatives[0].(*ast.Keyword)
	return ok && k.Kind == ast.KeywordNumber
}

func typeText(f *ast.FieldDefinition) string {
	s := ""
	for i, n := range f.Alternatives {
		if i > 0 {
			s += " | "
		}
		s += ast.TypeString(n)
	}
	return s
}
