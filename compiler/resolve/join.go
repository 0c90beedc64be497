package resolve

import (
	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
)

// ResolveJoins finds the fields of t whose type names another table by
// item name or table name. A join must be the only non-literal type of its
// field. References that resolve to nothing, or to more than one table, are
// reported; references to aliases and builtins are checked as well.
func ResolveJoins(t *Table, s *Schema) ([]*JoinRelation, diag.List) {
	var (
		errs  diag.List
		joins []*JoinRelation
	)
	for _, f := range t.Fields {
		var (
			refs  []*ast.TypeReference
			types int
		)
		for _, n := range f.Def.Alternatives {
			if ast.IsLiteral(n) {
				continue
			}
			types++
			ref, ok := n.(*ast.TypeReference)
			if !ok {
				continue
			}
			if fe := s.checkReference(ref, false, false); len(fe) > 0 {
				errs.Add(fe...)
				continue
			}
			if s.classify(ref.Name.Value) == refTable {
				refs = append(refs, ref)
			}
		}
		switch {
		case len(refs) == 0:
		case types > 1:
			errs.Add(diag.New(diag.InvalidJoinType, refs[0].Loc,
				"field %q joins table %q and must not have other types", f.Name, refs[0].Name.Value))
		default:
			joins = append(joins, &JoinRelation{
				Owner:     t,
				Field:     f,
				Target:    s.items[refs[0].Name.Value][0],
				Reference: refs[0],
			})
		}
	}
	return joins, errs
}
