// Package lexer turns schema source text into tokens.
package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/source"
)

// rules is the ordered rule table. The first rule matching at the cursor
// wins, so longer forms precede their prefixes. The Open* and Invalid
// rules make the table total; they are turned into diagnostics here.
var rules = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "BlockComment", Pattern: `/\*(?s:.*?)\*/`},
	{Name: "OpenComment", Pattern: `/\*(?s:.*)`},
	{Name: "String", Pattern: `"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'`},
	{Name: "OpenString", Pattern: `"(?:[^"\\\n]|\\.)*|'(?:[^'\\\n]|\\.)*`},
	{Name: "Float", Pattern: `-?[0-9]+\.[0-9]+(?:[eE][+-]?[0-9]+)?`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[@(){}<>:;,=|]`},
	{Name: "Invalid", Pattern: `(?s:.)`},
})

var symbols = rules.Symbols()

// Tokenize returns the tokens of src terminated by a single EOF token.
// It stops at the first lexical error and returns it as a *diag.Diagnostic.
func Tokenize(filename, src string) ([]Token, error) {
	var first *diag.Diagnostic
	toks := scan(filename, src, func(d *diag.Diagnostic) bool {
		first = d
		return false
	})
	if first != nil {
		return nil, first
	}
	return toks, nil
}

// TokenizeAll tokenizes all of src. Text that fails to tokenize is
// replaced by an Illegal token and reported in the returned list.
func TokenizeAll(filename, src string) ([]Token, diag.List) {
	var errs diag.List
	toks := scan(filename, src, func(d *diag.Diagnostic) bool {
		errs.Add(d)
		return true
	})
	return toks, errs
}

// scan drives the rule lexer. report is called for each lexical error;
// scanning stops when it returns false.
func scan(filename, src string, report func(*diag.Diagnostic) bool) []Token {
	lex, err := rules.LexString(filename, src)
	if err != nil {
		// The rule table accepts any input, so this only fails on a
		// broken table.
		panic(fmt.Sprintf("lexer: %v", err))
	}
	var (
		toks []Token
		pos  = source.Position{Line: 1, Column: 1}
	)
	for {
		t, err := lex.Next()
		if err != nil {
			panic(fmt.Sprintf("lexer: %v", err))
		}
		end := pos.Advance(t.Value)
		loc := source.Location{Filename: filename, Start: pos, End: end}
		pos = end
		if t.EOF() {
			toks = append(toks, Token{Kind: EOF, Location: loc})
			return toks
		}
		switch t.Type {
		case symbols["Whitespace"], symbols["LineComment"], symbols["BlockComment"]:
		case symbols["String"]:
			if _, err := Unquote(t.Value); err != nil {
				d := diag.New(diag.LexicalError, loc, "invalid escape sequence in string literal %s", t.Value)
				if !report(d) {
					return nil
				}
				toks = append(toks, Token{Kind: Illegal, Text: t.Value, Location: loc})
				continue
			}
			toks = append(toks, Token{Kind: StringLiteral, Text: t.Value, Location: loc})
		case symbols["Float"]:
			toks = append(toks, Token{Kind: FloatLiteral, Text: t.Value, Location: loc})
		case symbols["Int"]:
			toks = append(toks, Token{Kind: IntegerLiteral, Text: t.Value, Location: loc})
		case symbols["Ident"]:
			kind, ok := keywords[t.Value]
			if !ok {
				kind = Identifier
			}
			toks = append(toks, Token{Kind: kind, Text: t.Value, Location: loc})
		case symbols["Punct"]:
			toks = append(toks, Token{Kind: puncts[t.Value], Text: t.Value, Location: loc})
		default:
			d := lexicalError(t.Type, t.Value, loc)
			if !report(d) {
				return nil
			}
			toks = append(toks, Token{Kind: Illegal, Text: t.Value, Location: loc})
		}
	}
}

func lexicalError(typ lexer.TokenType, text string, loc source.Location) *diag.Diagnostic {
	switch typ {
	case symbols["OpenString"]:
		return diag.New(diag.LexicalError, loc, "unterminated string literal")
	case symbols["OpenComment"]:
		return diag.New(diag.LexicalError, loc, "unterminated block comment")
	}
	return diag.New(diag.LexicalError, loc, "unexpected character %q", text)
}

// Unquote returns the value of a single or double quoted string literal.
func Unquote(text string) (string, error) {
	if len(text) < 2 {
		return "", fmt.Errorf("invalid string literal %s", text)
	}
	if text[0] != '\'' {
		return strconv.Unquote(text)
	}
	var b strings.Builder
	b.WriteByte('"')
	body := text[1 : len(text)-1]
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(body):
			b.WriteByte(c)
			b.WriteByte(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return strconv.Unquote(b.String())
}
