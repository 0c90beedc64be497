// Package diag defines the diagnostics reported by every compiler stage.
package diag

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/kvgen/compiler/source"
)

// Sentinel errors for the diagnostic classes. A *Diagnostic matches
// exactly one of them with errors.Is.
var (
	// ErrLexical indicates the source text could not be tokenized.
	ErrLexical = errors.New("kvgen: lexical error")
	// ErrSyntax indicates the token stream does not match the grammar.
	ErrSyntax = errors.New("kvgen: syntax error")
	// ErrSemantic indicates a well-formed schema that violates a schema rule.
	ErrSemantic = errors.New("kvgen: semantic error")
)

// Kind names one entry of the diagnostic taxonomy.
type Kind string

// Lexical and syntax kinds.
const (
	LexicalError Kind = "LexicalError"
	SyntaxError  Kind = "SyntaxError"
)

// Semantic kinds.
const (
	DuplicateAnnotation        Kind = "DuplicateAnnotation"
	InvalidAnnotationArguments Kind = "InvalidAnnotationArguments"
	InvalidAnnotationTarget    Kind = "InvalidAnnotationTarget"
	UnknownAnnotation          Kind = "UnknownAnnotation"
	MissingPrimaryKey          Kind = "MissingPrimaryKey"
	ConflictingPrimaryKey      Kind = "ConflictingPrimaryKey"
	DuplicateIndexName         Kind = "DuplicateIndexName"
	UnresolvedUniqueAnnotation Kind = "UnresolvedUniqueAnnotation"
	UnknownTypeReference       Kind = "UnknownTypeReference"
	InvalidTypeArguments       Kind = "InvalidTypeArguments"
	InvalidJoinType            Kind = "InvalidJoinType"
	AmbiguousJoinTarget        Kind = "AmbiguousJoinTarget"
	InvalidDefaultLiteral      Kind = "InvalidDefaultLiteral"
	DuplicateItemAlias         Kind = "DuplicateItemAlias"
	DuplicateDefinition        Kind = "DuplicateDefinition"
)

// class returns the sentinel a kind belongs to.
func (k Kind) class() error {
	switch k {
	case LexicalError:
		return ErrLexical
	case SyntaxError:
		return ErrSyntax
	default:
		return ErrSemantic
	}
}

// Diagnostic is a single reported problem with its source location.
type Diagnostic struct {
	Kind     Kind            `json:"kind" yaml:"kind" msgpack:"kind"`
	Message  string          `json:"message" yaml:"message" msgpack:"message"`
	Location source.Location `json:"location" yaml:"location" msgpack:"location"`
	// Related holds the other sites of a conflict, for example the
	// second table declaring the same item alias.
	Related []source.Location `json:"related,omitempty" yaml:"related,omitempty" msgpack:"related,omitempty"`
}

// New returns a diagnostic of the given kind.
func New(kind Kind, loc source.Location, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

// WithRelated appends related locations and returns d.
func (d *Diagnostic) WithRelated(locs ...source.Location) *Diagnostic {
	d.Related = append(d.Related, locs...)
	return d
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Kind, d.Message)
}

// Is reports whether target is the class sentinel of the diagnostic.
func (d *Diagnostic) Is(target error) bool {
	return target == d.Kind.class()
}

// IsKind reports whether err is, or wraps, a diagnostic of the given kind.
func IsKind(err error, kind Kind) bool {
	var l List
	if errors.As(err, &l) {
		return l.Has(kind)
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == kind
	}
	return false
}

// List is an ordered collection of diagnostics. It implements error so
// a failed compilation can be returned as a single value.
type List []*Diagnostic

// Add appends diagnostics to the list.
func (l *List) Add(ds ...*Diagnostic) {
	*l = append(*l, ds...)
}

// Has reports whether the list holds a diagnostic of the given kind.
func (l List) Has(kind Kind) bool {
	return slices.ContainsFunc(l, func(d *Diagnostic) bool { return d.Kind == kind })
}

// OfKind returns the diagnostics of the given kind.
func (l List) OfKind(kind Kind) List {
	var r List
	for _, d := range l {
		if d.Kind == kind {
			r = append(r, d)
		}
	}
	return r
}

// Sort orders the list by location. The sort is stable so diagnostics
// reported at the same site keep their detection order.
func (l List) Sort() {
	slices.SortStableFunc(l, func(a, b *Diagnostic) int {
		switch {
		case a.Location.Less(b.Location):
			return -1
		case b.Location.Less(a.Location):
			return 1
		}
		return 0
	})
}

// Dedupe removes diagnostics with the same kind, message and location
// and returns the shortened list.
func (l List) Dedupe() List {
	type key struct {
		kind Kind
		msg  string
		loc  source.Location
	}
	seen := make(map[key]struct{}, len(l))
	r := l[:0]
	for _, d := range l {
		k := key{d.Kind, d.Message, d.Location}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		r = append(r, d)
	}
	return r
}

// Error implements the error interface.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(l))
	for _, d := range l {
		b.WriteString("\n\t")
		b.WriteString(d.Error())
	}
	return b.String()
}

// Unwrap exposes the diagnostics to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, d := range l {
		errs[i] = d
	}
	return errs
}

// Err returns the list as an error, or nil if it is empty.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Mode selects how a stage reacts to the first error it detects.
type Mode int

const (
	// FailFast stops at the first error.
	FailFast Mode = iota
	// CollectAll recovers and keeps going, gathering every error.
	CollectAll
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m == CollectAll {
		return "collect-all"
	}
	return "fail-fast"
}

// ParseMode parses a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fail-fast", "failfast", "":
		return FailFast, nil
	case "collect-all", "collectall":
		return CollectAll, nil
	}
	return FailFast, fmt.Errorf("unknown mode %q: use fail-fast or collect-all", s)
}
