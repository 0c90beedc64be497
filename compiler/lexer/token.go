package lexer

import (
	"fmt"

	"github.com/syssam/kvgen/compiler/source"
)

// Kind is the kind of a token.
type Kind int

// Token kinds.
const (
	// Illegal stands in for text that failed to tokenize. It is only
	// produced by TokenizeAll.
	Illegal Kind = iota
	EOF

	Identifier
	StringLiteral
	IntegerLiteral
	FloatLiteral

	// Keywords.
	Database
	Table
	Type
	True
	False
	String
	Number
	Boolean

	// Punctuation.
	At        // @
	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
	Less      // <
	Greater   // >
	Colon     // :
	Semicolon // ;
	Comma     // ,
	Equals    // =
	Pipe      // |
)

var kindNames = [...]string{
	Illegal:        "Illegal",
	EOF:            "EOF",
	Identifier:     "Identifier",
	StringLiteral:  "StringLiteral",
	IntegerLiteral: "IntegerLiteral",
	FloatLiteral:   "FloatLiteral",
	Database:       "database",
	Table:          "table",
	Type:           "type",
	True:           "true",
	False:          "false",
	String:         "string",
	Number:         "number",
	Boolean:        "boolean",
	At:             "@",
	LParen:         "(",
	RParen:         ")",
	LBrace:         "{",
	RBrace:         "}",
	Less:           "<",
	Greater:        ">",
	Colon:          ":",
	Semicolon:      ";",
	Comma:          ",",
	Equals:         "=",
	Pipe:           "|",
}

// String returns the keyword or punctuation text of k, or its name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword reports whether k is a reserved word.
func (k Kind) IsKeyword() bool { return k >= Database && k <= Boolean }

// IsPunct reports whether k is a punctuation token.
func (k Kind) IsPunct() bool { return k >= At && k <= Pipe }

// StartsDefinition reports whether k begins a top-level or table definition.
func (k Kind) StartsDefinition() bool {
	return k == Database || k == Table || k == Type
}

// keywords maps reserved words to their kinds.
var keywords = map[string]Kind{
	"database": Database,
	"table":    Table,
	"type":     Type,
	"true":     True,
	"false":    False,
	"string":   String,
	"number":   Number,
	"boolean":  Boolean,
}

// puncts maps punctuation text to its kind.
var puncts = map[string]Kind{
	"@": At,
	"(": LParen,
	")": RParen,
	"{": LBrace,
	"}": RBrace,
	"<": Less,
	">": Greater,
	":": Colon,
	";": Semicolon,
	",": Comma,
	"=": Equals,
	"|": Pipe,
}

// Token is a lexeme with its location. Text is the exact source text,
// including the quotes of string literals.
type Token struct {
	Kind     Kind
	Text     string
	Location source.Location
}

// String returns a short description for error messages.
func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case Identifier:
		return fmt.Sprintf("identifier %q", t.Text)
	case StringLiteral, IntegerLiteral, FloatLiteral:
		return "literal " + t.Text
	}
	return fmt.Sprintf("%q", t.Text)
}
