package lexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/source"
)

func kinds(toks []Token) []Kind {
	r := make([]Kind, len(toks))
	for i, t := range toks {
		r[i] = t.Kind
	}
	return r
}

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("", `database Blog @version(1) { table Posts { @index title: string | "x"; } }`)
	require.NoError(t, err)
	assert.Equal(t, []Kind{
		Database, Identifier, At, Identifier, LParen, IntegerLiteral, RParen, LBrace,
		Table, Identifier, LBrace,
		At, Identifier, Identifier, Colon, String, Pipe, StringLiteral, Semicolon,
		RBrace, RBrace, EOF,
	}, kinds(toks))
}

func TestTokenize_Kinds(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
	}{
		{"database", Database},
		{"table", Table},
		{"type", Type},
		{"true", True},
		{"false", False},
		{"string", String},
		{"number", Number},
		{"boolean", Boolean},
		{"tables", Identifier},
		{"_id2", Identifier},
		{`"a b"`, StringLiteral},
		{`'it\'s'`, StringLiteral},
		{"42", IntegerLiteral},
		{"-7", IntegerLiteral},
		{"3.14", FloatLiteral},
		{"1.5e3", FloatLiteral},
		{"<", Less},
		{">", Greater},
		{"=", Equals},
		{"|", Pipe},
		{",", Comma},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks, err := Tokenize("", tt.input)
			require.NoError(t, err)
			require.Len(t, toks, 2)
			assert.Equal(t, tt.kind, toks[0].Kind)
			assert.Equal(t, tt.input, toks[0].Text)
			assert.Equal(t, EOF, toks[1].Kind)
		})
	}
}

func TestTokenize_SkipsComments(t *testing.T) {
	toks, err := Tokenize("", "// line\n table /* block\n comment */ Posts")
	require.NoError(t, err)
	require.Equal(t, []Kind{Table, Identifier, EOF}, kinds(toks))
	assert.Equal(t, source.Position{Offset: 9, Line: 2, Column: 2}, toks[0].Location.Start)
	assert.Equal(t, source.Position{Offset: 14, Line: 2, Column: 7}, toks[0].Location.End)
	assert.Equal(t, 3, toks[1].Location.Start.Line)
}

func TestTokenize_MaximalMunch(t *testing.T) {
	toks, err := Tokenize("", "databases 12.5x")
	require.NoError(t, err)
	assert.Equal(t, []Kind{Identifier, FloatLiteral, Identifier, EOF}, kinds(toks))
	assert.Equal(t, "databases", toks[0].Text)
	assert.Equal(t, "12.5", toks[1].Text)
}

func TestTokenize_EOFLocation(t *testing.T) {
	toks, err := Tokenize("schema", "a\n")
	require.NoError(t, err)
	eof := toks[len(toks)-1]
	assert.Equal(t, EOF, eof.Kind)
	assert.Equal(t, source.Position{Offset: 2, Line: 2, Column: 1}, eof.Location.Start)
	assert.Equal(t, "schema", eof.Location.Filename)
	assert.True(t, eof.Location.Start.IsValid())

	toks, err = Tokenize("", "")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, EOF, toks[0].Kind)
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
		column  int
	}{
		{"unterminated string", `table "abc`, "unterminated string literal", 7},
		{"unterminated single quoted", "x 'abc\n;", "unterminated string literal", 3},
		{"invalid character", "table # Posts", `unexpected character "#"`, 7},
		{"unterminated comment", "a /* b", "unterminated block comment", 3},
		{"invalid escape", `"\q"`, "invalid escape sequence", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Tokenize("", tt.input)
			require.Error(t, err)
			assert.Nil(t, toks)
			assert.True(t, errors.Is(err, diag.ErrLexical))
			var d *diag.Diagnostic
			require.ErrorAs(t, err, &d)
			assert.Equal(t, diag.LexicalError, d.Kind)
			assert.Contains(t, d.Message, tt.message)
			assert.Equal(t, tt.column, d.Location.Start.Column)
		})
	}
}

func TestTokenizeAll(t *testing.T) {
	toks, errs := TokenizeAll("", "table # Posts $ {")
	require.Len(t, errs, 2)
	assert.Equal(t, []Kind{Table, Illegal, Identifier, Illegal, LBrace, EOF}, kinds(toks))
	assert.Equal(t, "#", toks[1].Text)
}

func TestTokenize_Idempotent(t *testing.T) {
	src := "database Blog @version(1) {\n  table Posts @item(\"Post\") {\n    @autoincrement id: number;\n  }\n}\n"
	a, err := Tokenize("blog.schema", src)
	require.NoError(t, err)
	b, err := Tokenize("blog.schema", src)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{`"Post"`, "Post"},
		{`"a\"b"`, `a"b`},
		{`'Post'`, "Post"},
		{`'it\'s'`, "it's"},
		{`'say "hi"'`, `say "hi"`},
		{`'tab\t'`, "tab\t"},
	}
	for _, tt := range tests {
		got, err := Unquote(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.out, got)
	}
	_, err := Unquote(`"`)
	assert.Error(t, err)
}
