package resolve

import (
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/source"
)

// ResolveIndexes computes the primary key and secondary indexes of a
// table from its field facts. The key comes first, followed by one index
// per distinct @index name in order of first declaration. Fields of a
// compound index keep their declaration order.
func ResolveIndexes(t *Table) ([]*TableIndex, diag.List) {
	var errs diag.List
	var keys []*Field
	for _, f := range t.Fields {
		if f.Facts.PrimaryKey() {
			keys = append(keys, f)
		}
	}
	var indexes []*TableIndex
	switch len(keys) {
	case 0:
		errs.Add(diag.New(diag.MissingPrimaryKey, t.Def.Name.Loc,
			"table %q has no primary key: mark one field with @autoincrement or @key", t.Name))
	case 1:
		f := keys[0]
		indexes = append(indexes, &TableIndex{
			Name:          f.Name,
			Kind:          IndexKey,
			Fields:        []*Field{f},
			Unique:        true,
			AutoIncrement: f.Facts.AutoIncrement != nil,
			Loc:           f.Facts.marker().Loc,
		})
	default:
		related := make([]source.Location, 0, len(keys)-1)
		for _, f := range keys[:len(keys)-1] {
			related = append(related, f.Facts.marker().Loc)
		}
		last := keys[len(keys)-1]
		errs.Add(diag.New(diag.ConflictingPrimaryKey, last.Facts.marker().Loc,
			"table %q has %d primary key fields, %s", t.Name, len(keys), fieldList(keys)).WithRelated(related...))
	}

	type bucket struct {
		index *TableIndex
		group bool
	}
	buckets := make(map[string]*bucket)
	for _, f := range t.Fields {
		for _, ia := range f.Facts.Indexes {
			if len(keys) == 1 && ia.Name == keys[0].Name {
				errs.Add(diag.New(diag.DuplicateIndexName, ia.Annotation.Loc,
					"index %q has the name of the primary key of table %q", ia.Name, t.Name).WithRelated(indexes[0].Loc))
				continue
			}
			b, ok := buckets[ia.Name]
			switch {
			case !ok:
				b = &bucket{
					index: &TableIndex{Name: ia.Name, Kind: IndexSecondary, Loc: ia.Annotation.Loc},
					group: ia.Group,
				}
				buckets[ia.Name] = b
				indexes = append(indexes, b.index)
			case !b.group || !ia.Group:
				// An implicit index is owned by its field and can't be shared.
				errs.Add(diag.New(diag.DuplicateIndexName, ia.Annotation.Loc,
					"index name %q is already used in table %q", ia.Name, t.Name).WithRelated(b.index.Loc))
				continue
			}
			b.index.Fields = append(b.index.Fields, f)
			if f.Facts.Unique != nil && f.Facts.UniqueIndex == ia.Name {
				b.index.Unique = true
			}
		}
	}
	return indexes, errs
}

func fieldList(fs []*Field) string {
	s := ""
	for i, f := range fs {
		if i > 0 {
			s += ", "
		}
		s += `"` + f.Name + `"`
	}
	return s
}
