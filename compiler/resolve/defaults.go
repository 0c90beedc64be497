package resolve

import (
	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
)

// ResolveDefaults finds the fields of t whose type alternatives include a
// single literal. The literal is the value written when an add omits the
// field. The literal must be a value of the field's other alternative, if
// it has one; with two or more other alternatives it is ambiguous.
func ResolveDefaults(t *Table, s *Schema) ([]*DefaultValue, diag.List) {
	var (
		errs     diag.List
		defaults []*DefaultValue
	)
	for _, f := range t.Fields {
		var (
			lits   []ast.Literal
			others []ast.TypeNode
		)
		for _, n := range f.Def.Alternatives {
			if l, ok := n.(ast.Literal); ok {
				lits = append(lits, l)
			} else {
				others = append(others, n)
			}
		}
		switch {
		case len(lits) == 0:
			continue
		case len(lits) > 1:
			errs.Add(diag.New(diag.InvalidDefaultLiteral, lits[1].Location(),
				"field %q has %d literal alternatives, a default takes exactly one", f.Name, len(lits)))
			continue
		case len(others) > 1:
			errs.Add(diag.New(diag.InvalidDefaultLiteral, lits[0].Location(),
				"default %s of field %q is ambiguous next to %d types", lits[0].Raw(), f.Name, len(others)))
			continue
		}
		lit := NewLiteral(lits[0])
		if len(others) == 1 {
			ok, checked := s.literalFits(others[0], lit)
			if !checked {
				// The reference is reported by ResolveJoins.
				continue
			}
			if !ok {
				errs.Add(diag.New(diag.InvalidDefaultLiteral, lits[0].Location(),
					"default %s is not a value of type %s of field %q", lits[0].Raw(), ast.TypeString(others[0]), f.Name))
				continue
			}
		}
		defaults = append(defaults, &DefaultValue{Field: f, Literal: lit})
	}
	return defaults, errs
}

// literalFits reports whether lit is a value of type node n. checked is
// false when n is a reference that does not resolve.
func (s *Schema) literalFits(n ast.TypeNode, lit *Literal) (ok, checked bool) {
	if ref, isRef := n.(*ast.TypeReference); isRef {
		switch s.classify(ref.Name.Value) {
		case refUnknown, refAmbiguous:
			return false, false
		case refTable, refBuiltin:
			return false, true
		}
	}
	vt := s.valueType(n)
	if vt == nil {
		return false, false
	}
	return admits(vt, lit, make(map[*Alias]bool)), true
}
