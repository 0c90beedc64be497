// Package source describes positions and spans in schema source text.
package source

import "fmt"

// Position is a point in the source text. Line and Column are 1-based,
// Column counts runes. Offset is the byte offset from the start of the text.
type Position struct {
	Offset int `json:"offset" yaml:"offset" msgpack:"offset"`
	Line   int `json:"line" yaml:"line" msgpack:"line"`
	Column int `json:"column" yaml:"column" msgpack:"column"`
}

// String returns the "line:column" form of the position.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position points into a text.
func (p Position) IsValid() bool { return p.Line > 0 }

// Advance returns the position reached after consuming text from p.
func (p Position) Advance(text string) Position {
	for _, r := range text {
		if r == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	p.Offset += len(text)
	return p
}

// Location is a half-open span [Start, End) of source text.
type Location struct {
	Filename string   `json:"filename,omitempty" yaml:"filename,omitempty" msgpack:"filename,omitempty"`
	Start    Position `json:"start" yaml:"start" msgpack:"start"`
	End      Position `json:"end" yaml:"end" msgpack:"end"`
}

// Span returns the location covering both a and b. The filename of a wins.
func Span(a, b Location) Location {
	loc := a
	if b.End.Offset > loc.End.Offset {
		loc.End = b.End
	}
	if b.Start.Offset < loc.Start.Offset {
		loc.Start = b.Start
	}
	return loc
}

// String returns "file:line:col" or "line:col" when no filename is set.
func (l Location) String() string {
	if l.Filename == "" {
		return l.Start.String()
	}
	return l.Filename + ":" + l.Start.String()
}

// Less orders locations by file and start offset.
func (l Location) Less(o Location) bool {
	if l.Filename != o.Filename {
		return l.Filename < o.Filename
	}
	if l.Start.Offset != o.Start.Offset {
		return l.Start.Offset < o.Start.Offset
	}
	return l.End.Offset < o.End.Offset
}
