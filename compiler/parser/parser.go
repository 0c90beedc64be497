// Package parser builds the syntax tree of a schema from its tokens.
//
// The grammar is LL(1): every production dispatches on the current token.
// A production that meets an unexpected token returns a SyntaxError and
// abandons the enclosing top-level definition. Callers choose between
// stopping there and calling Resynchronize to continue with the next
// definition; Parse implements both policies.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/lexer"
	"github.com/syssam/kvgen/compiler/source"
)

// Parser is a parsing session over one token stream. A Parser must not be
// shared between goroutines.
type Parser struct {
	toks []lexer.Token
	pos  int
	// start is the cursor at the beginning of the last definition.
	start int
	// open counts the unclosed braces of a database abandoned after an
	// error. Tables and '}' tokens met while it is positive belong to that
	// database and are skipped.
	open int
}

// New returns a parser over toks. Illegal tokens were already reported by
// the lexer and are dropped. A missing EOF token is added.
func New(toks []lexer.Token) *Parser {
	p := &Parser{toks: make([]lexer.Token, 0, len(toks)+1)}
	for _, t := range toks {
		if t.Kind != lexer.Illegal {
			p.toks = append(p.toks, t)
		}
	}
	if n := len(p.toks); n == 0 || p.toks[n-1].Kind != lexer.EOF {
		var loc source.Location
		if n > 0 {
			loc = p.toks[n-1].Location
			loc.Start = loc.End
		} else {
			loc.Start = source.Position{Line: 1, Column: 1}
			loc.End = loc.Start
		}
		p.toks = append(p.toks, lexer.Token{Kind: lexer.EOF, Location: loc})
	}
	return p
}

// Parse parses all definitions of toks. In FailFast mode it stops at the
// first syntax error; in CollectAll mode it resynchronizes after each error
// and reports all of them. The returned schema holds every definition that
// parsed without error.
func Parse(toks []lexer.Token, mode diag.Mode) (*ast.Schema, diag.List) {
	p := New(toks)
	schema := &ast.Schema{}
	var errs diag.List
	for !p.Done() {
		def, err := p.ParseDefinition()
		if err != nil {
			errs.Add(toDiagnostic(err))
			if mode == diag.FailFast {
				break
			}
			p.Resynchronize()
			continue
		}
		if def != nil {
			schema.Definitions = append(schema.Definitions, def)
		}
	}
	schema.Loc = source.Span(p.toks[0].Location, p.toks[len(p.toks)-1].Location)
	return schema, errs
}

// Done reports whether the cursor reached the end of input.
func (p *Parser) Done() bool { return p.cur().Kind == lexer.EOF }

// ParseDefinition parses the top-level definition at the cursor. The
// result is nil without an error when the tokens were consumed as part of
// error recovery.
func (p *Parser) ParseDefinition() (ast.Definition, error) {
	p.start = p.pos
	switch tok := p.cur(); tok.Kind {
	case lexer.Database:
		db, err := p.parseDatabase()
		if err != nil {
			return nil, err
		}
		p.open = 0
		return db, nil
	case lexer.Type:
		td, err := p.parseTypeDefinition()
		if err != nil {
			return nil, err
		}
		p.open = 0
		return td, nil
	case lexer.Table:
		t, err := p.parseTable()
		if err != nil {
			return nil, err
		}
		// The remaining tables of a database abandoned after an error.
		if p.open > 0 {
			return nil, nil
		}
		return nil, errorf(t.Name.Loc, "table %q must be declared inside a database", t.Name.Value)
	case lexer.RBrace:
		if p.open > 0 {
			p.open--
			p.pos++
			return nil, nil
		}
		return nil, errorf(tok.Location, "unexpected %s at top level", tok)
	default:
		return nil, errorf(tok.Location, "expected 'database' or 'type' definition, found %s", tok)
	}
}

// Resynchronize advances the cursor to the next token that starts a
// definition (database, table or type) or to the end of input. It always
// moves past the definition that failed. When that definition is a
// database, or a table of a database still being skipped, Resynchronize
// keeps track of its unclosed braces so that ParseDefinition can tell its
// leftover tables from stray top-level ones.
func (p *Parser) Resynchronize() {
	track := p.open > 0
	if p.toks[p.start].Kind == lexer.Database {
		p.open, track = 0, true
	}
	skip := func() {
		if track {
			p.count(p.cur())
		}
		p.pos++
	}
	if track {
		for _, t := range p.toks[p.start:p.pos] {
			p.count(t)
		}
	}
	if p.pos == p.start && !p.Done() {
		skip()
	}
	for !p.Done() && !p.cur().Kind.StartsDefinition() {
		skip()
	}
}

func (p *Parser) count(t lexer.Token) {
	switch t.Kind {
	case lexer.LBrace:
		p.open++
	case lexer.RBrace:
		if p.open > 0 {
			p.open--
		}
	}
}

// DatabaseDefinition → 'database' Identifier Annotation* '{' TableDefinition* '}'
func (p *Parser) parseDatabase() (*ast.DatabaseDefinition, error) {
	first := p.next()
	name, err := p.identifier("database name")
	if err != nil {
		return nil, err
	}
	anns, err := p.annotations()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace, "'{' to open database "+strconv.Quote(name.Value)); err != nil {
		return nil, err
	}
	db := &ast.DatabaseDefinition{Name: name, Annotations: anns}
	for {
		switch tok := p.cur(); tok.Kind {
		case lexer.RBrace:
			p.next()
			db.Loc = p.span(first.Location)
			return db, nil
		case lexer.Table:
			t, err := p.parseTable()
			if err != nil {
				return nil, err
			}
			db.Tables = append(db.Tables, t)
		case lexer.EOF, lexer.Database, lexer.Type:
			return nil, errorf(tok.Location, "expected '}' to close database %q, found %s", name.Value, tok)
		default:
			return nil, errorf(tok.Location, "expected table definition or '}' in database %q, found %s", name.Value, tok)
		}
	}
}

// TableDefinition → 'table' Identifier Annotation* '{' FieldDefinition* '}'
func (p *Parser) parseTable() (*ast.TableDefinition, error) {
	first := p.next()
	name, err := p.identifier("table name")
	if err != nil {
		return nil, err
	}
	anns, err := p.annotations()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace, "'{' to open table "+strconv.Quote(name.Value)); err != nil {
		return nil, err
	}
	t := &ast.TableDefinition{Name: name, Annotations: anns}
	for {
		switch tok := p.cur(); tok.Kind {
		case lexer.RBrace:
			p.next()
			t.Loc = p.span(first.Location)
			return t, nil
		case lexer.At, lexer.Identifier:
			f, err := p.parseField()
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		case lexer.EOF, lexer.Database, lexer.Table, lexer.Type:
			return nil, errorf(tok.Location, "expected '}' to close table %q, found %s", name.Value, tok)
		default:
			return nil, errorf(tok.Location, "expected field definition or '}' in table %q, found %s", name.Value, tok)
		}
	}
}

// FieldDefinition → Annotation* Identifier ':' TypeNode ('|' TypeNode)* ';'
func (p *Parser) parseField() (*ast.FieldDefinition, error) {
	first := p.cur()
	anns, err := p.annotations()
	if err != nil {
		return nil, err
	}
	name, err := p.identifier("field name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Colon, "':' after field "+strconv.Quote(name.Value)); err != nil {
		return nil, err
	}
	alts, err := p.typeUnion()
	if err != nil {
		return nil, err
	}
	if err := p.terminator("field " + strconv.Quote(name.Value)); err != nil {
		return nil, err
	}
	return &ast.FieldDefinition{
		Name:         name,
		Annotations:  anns,
		Alternatives: alts,
		Loc:          p.span(first.Location),
	}, nil
}

// TypeDefinition → 'type' Identifier '=' TypeNode ('|' TypeNode)* ';'
func (p *Parser) parseTypeDefinition() (*ast.TypeDefinition, error) {
	first := p.next()
	name, err := p.identifier("type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Equals, "'=' after type "+strconv.Quote(name.Value)); err != nil {
		return nil, err
	}
	alts, err := p.typeUnion()
	if err != nil {
		return nil, err
	}
	if err := p.terminator("type " + strconv.Quote(name.Value)); err != nil {
		return nil, err
	}
	return &ast.TypeDefinition{Name: name, Alternatives: alts, Loc: p.span(first.Location)}, nil
}

// terminator expects the ';' that ends a field or type definition.
func (p *Parser) terminator(what string) error {
	if p.cur().Kind == lexer.Semicolon {
		p.next()
		return nil
	}
	tok := p.cur()
	if tok.Kind == lexer.EOF || tok.Kind.StartsDefinition() || tok.Kind == lexer.RBrace {
		return errorf(tok.Location, "missing ';' after %s, found %s", what, tok)
	}
	return errorf(tok.Location, "expected '|' or ';' after type of %s, found %s", what, tok)
}

// annotations parses Annotation*.
func (p *Parser) annotations() ([]*ast.Annotation, error) {
	var anns []*ast.Annotation
	for p.cur().Kind == lexer.At {
		a, err := p.annotation()
		if err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}
	return anns, nil
}

// Annotation → '@' Identifier ('(' Literal (',' Literal)* ')')?
func (p *Parser) annotation() (*ast.Annotation, error) {
	first := p.next()
	name, err := p.identifier("annotation name after '@'")
	if err != nil {
		return nil, err
	}
	a := &ast.Annotation{Name: name}
	if p.cur().Kind != lexer.LParen {
		a.Loc = p.span(first.Location)
		return a, nil
	}
	p.next()
	for {
		lit, err := p.literal("argument of @" + name.Value)
		if err != nil {
			return nil, err
		}
		a.Arguments = append(a.Arguments, lit)
		switch tok := p.cur(); tok.Kind {
		case lexer.Comma:
			p.next()
		case lexer.RParen:
			p.next()
			a.Loc = p.span(first.Location)
			return a, nil
		case lexer.EOF, lexer.Database, lexer.Table, lexer.Type, lexer.LBrace, lexer.Semicolon:
			return nil, errorf(tok.Location, "unterminated argument list of @%s: expected ')', found %s", name.Value, tok)
		default:
			return nil, errorf(tok.Location, "expected ',' or ')' in arguments of @%s, found %s", name.Value, tok)
		}
	}
}

// typeUnion parses TypeNode ('|' TypeNode)*.
func (p *Parser) typeUnion() ([]ast.TypeNode, error) {
	var alts []ast.TypeNode
	for {
		n, err := p.typeNode()
		if err != nil {
			return nil, err
		}
		alts = append(alts, n)
		if p.cur().Kind != lexer.Pipe {
			return alts, nil
		}
		p.next()
	}
}

// TypeNode → Identifier ('<' TypeNode (',' TypeNode)* '>')?
//
//	| 'string' | 'number' | 'boolean'
//	| StringLiteral | IntegerLiteral | FloatLiteral | 'true' | 'false'
func (p *Parser) typeNode() (ast.TypeNode, error) {
	switch tok := p.cur(); tok.Kind {
	case lexer.String, lexer.Number, lexer.Boolean:
		p.next()
		return &ast.Keyword{Kind: ast.KeywordKind(tok.Text), Loc: tok.Location}, nil
	case lexer.Identifier:
		ref, err := p.typeReference()
		if err != nil {
			return nil, err
		}
		return ref, nil
	case lexer.StringLiteral, lexer.IntegerLiteral, lexer.FloatLiteral, lexer.True, lexer.False:
		lit, err := p.literal("type")
		if err != nil {
			return nil, err
		}
		return lit, nil
	default:
		return nil, errorf(tok.Location, "expected a type, found %s", tok)
	}
}

func (p *Parser) typeReference() (*ast.TypeReference, error) {
	first := p.next()
	ref := &ast.TypeReference{Name: &ast.Identifier{Value: first.Text, Loc: first.Location}}
	if p.cur().Kind != lexer.Less {
		ref.Loc = first.Location
		return ref, nil
	}
	p.next()
	for {
		n, err := p.typeNode()
		if err != nil {
			return nil, err
		}
		ref.TypeArguments = append(ref.TypeArguments, n)
		switch tok := p.cur(); tok.Kind {
		case lexer.Comma:
			p.next()
		case lexer.Greater:
			p.next()
			ref.Loc = p.span(first.Location)
			return ref, nil
		case lexer.EOF, lexer.Database, lexer.Table, lexer.Type, lexer.Semicolon, lexer.RBrace:
			return nil, errorf(tok.Location, "unterminated type arguments of %s: expected '>', found %s", first.Text, tok)
		default:
			return nil, errorf(tok.Location, "expected ',' or '>' in type arguments of %s, found %s", first.Text, tok)
		}
	}
}

// literal parses a string, integer, float or boolean literal.
func (p *Parser) literal(what string) (ast.Literal, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.StringLiteral:
		v, err := lexer.Unquote(tok.Text)
		if err != nil {
			return nil, errorf(tok.Location, "invalid string literal %s", tok.Text)
		}
		p.next()
		return &ast.StringLiteral{Value: v, Text: tok.Text, Loc: tok.Location}, nil
	case lexer.IntegerLiteral:
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, errorf(tok.Location, "integer literal %s out of range", tok.Text)
		}
		p.next()
		return &ast.IntegerLiteral{Value: v, Text: tok.Text, Loc: tok.Location}, nil
	case lexer.FloatLiteral:
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, errorf(tok.Location, "float literal %s out of range", tok.Text)
		}
		p.next()
		return &ast.FloatLiteral{Value: v, Text: tok.Text, Loc: tok.Location}, nil
	case lexer.True, lexer.False:
		p.next()
		return &ast.BooleanLiteral{Value: tok.Kind == lexer.True, Loc: tok.Location}, nil
	}
	return nil, errorf(tok.Location, "expected a literal as %s, found %s", what, tok)
}

// identifier expects an Identifier token.
func (p *Parser) identifier(what string) (*ast.Identifier, error) {
	tok := p.cur()
	if tok.Kind != lexer.Identifier {
		if tok.Kind.IsKeyword() {
			return nil, errorf(tok.Location, "expected %s, found reserved word %q", what, tok.Text)
		}
		return nil, errorf(tok.Location, "expected %s, found %s", what, tok)
	}
	p.next()
	return &ast.Identifier{Value: tok.Text, Loc: tok.Location}, nil
}

// expect consumes a token of the given kind.
func (p *Parser) expect(kind lexer.Kind, what string) (lexer.Token, error) {
	tok := p.cur()
	if tok.Kind != kind {
		return tok, errorf(tok.Location, "expected %s, found %s", what, tok)
	}
	p.next()
	return tok, nil
}

func (p *Parser) cur() lexer.Token { return p.toks[p.pos] }

// next returns the current token and advances, never past EOF.
func (p *Parser) next() lexer.Token {
	tok := p.toks[p.pos]
	if tok.Kind != lexer.EOF {
		p.pos++
	}
	return tok
}

// span returns the location from start to the end of the last consumed token.
func (p *Parser) span(start source.Location) source.Location {
	loc := start
	if p.pos > 0 {
		loc.End = p.toks[p.pos-1].Location.End
	}
	return loc
}

func errorf(loc source.Location, format string, args ...any) error {
	return diag.New(diag.SyntaxError, loc, format, args...)
}

func toDiagnostic(err error) *diag.Diagnostic {
	var d *diag.Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return diag.New(diag.SyntaxError, source.Location{}, "%s", fmt.Sprint(err))
}
