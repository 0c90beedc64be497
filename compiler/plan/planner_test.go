package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/lexer"
	"github.com/syssam/kvgen/compiler/parser"
	"github.com/syssam/kvgen/compiler/resolve"
)

const blog = `
database Blog @version(1) {
  table Posts @item("Post") {
    @autoincrement id: number;
    @index @index("title_author") @unique title: string;
    content: string;
    @index("title_author") author: string;
  }
}
`

func resolveSchema(t *testing.T, src string) *resolve.Schema {
	t.Helper()
	toks, err := lexer.Tokenize("test.schema", src)
	require.NoError(t, err)
	tree, errs := parser.Parse(toks, diag.FailFast)
	require.Empty(t, errs)
	return resolve.Resolve(tree, resolve.Options{Mode: diag.CollectAll})
}

func build(t *testing.T, src string, depth int) *Schema {
	t.Helper()
	s := resolveSchema(t, src)
	require.Empty(t, s.AllDiagnostics())
	p, err := Build(s, Options{JoinDepth: depth})
	require.NoError(t, err)
	return p
}

func TestBuild_Blog(t *testing.T) {
	p := build(t, blog, DefaultJoinDepth)
	require.Len(t, p.Databases, 1)
	assert.Equal(t, "Blog", p.Databases[0].Name)
	assert.Equal(t, 1, p.Databases[0].Version)

	posts := p.Table("Posts")
	require.NotNil(t, posts)
	assert.Equal(t, "id", posts.Key)
	assert.True(t, posts.AutoIncrement)
	assert.Equal(t, "number", posts.KeyType.String())

	assert.Equal(t, "Post", posts.Item.Name)
	assert.Equal(t, "{id: number, title: string, content: string, author: string}", posts.Item.String())
	assert.Equal(t, "PostStored", posts.Stored.Name)
	assert.Equal(t, posts.Item.String(), posts.Stored.String())
	assert.Equal(t, "PostAddArgs", posts.AddArgs.Name)
	assert.Equal(t, "{title: string, content: string, author: string}", posts.AddArgs.String())

	assert.Equal(t,
		"number | {id: number} | {title: string} | {title: string, author: string}",
		posts.GetArgsType().String())
	require.Len(t, posts.GetArgs, 4)
	assert.True(t, posts.GetArgs[0].Bare)
	assert.Equal(t, []string{"id", "id", "title", "title_author"},
		[]string{posts.GetArgs[0].Index, posts.GetArgs[1].Index, posts.GetArgs[2].Index, posts.GetArgs[3].Index})

	assert.Equal(t,
		`{kind: "add", payload: Post} | {kind: "put", payload: Post} | {kind: "delete", payload: number}`,
		posts.EventType().String())
}

func TestBuild_GetArgsCompleteness(t *testing.T) {
	p := build(t, `
database Blog {
  table Posts {
    @autoincrement id: number;
    @index title: string;
    @index author: string;
    body: string;
  }
}`, DefaultJoinDepth)
	assert.Equal(t,
		"number | {id: number} | {title: string} | {author: string}",
		p.Table("Posts").GetArgsType().String())
}

func TestBuild_RangeIndexes(t *testing.T) {
	posts := build(t, blog, DefaultJoinDepth).Table("Posts")
	require.Len(t, posts.RangeIndexes, 3)

	id := posts.RangeIndex("id")
	require.NotNil(t, id)
	assert.Equal(t, "key", id.Kind)
	assert.True(t, id.Unique)
	assert.Equal(t, "number", id.Value.String())

	title := posts.RangeIndex("title")
	assert.Equal(t, "index", title.Kind)
	assert.True(t, title.Unique)
	assert.Equal(t, []string{"title"}, title.Fields)

	compound := posts.RangeIndex("title_author")
	assert.Equal(t, []string{"title", "author"}, compound.Fields)
	assert.Equal(t, "{title: string, author: string}", compound.Value.String())

	for _, r := range posts.RangeIndexes {
		require.Len(t, r.Operations, len(Operations), r.Name)
		for i, op := range r.Operations {
			assert.Equal(t, Operations[i], op.Name)
			assert.Equal(t, "Post", op.Result)
		}
		between := r.Operation(OpIsBetween)
		require.Len(t, between.Params, 2)
		assert.Equal(t, "lowerBound", between.Params[0].Name)
		assert.Equal(t, "upperBound", between.Params[1].Name)
		assert.Same(t, r.Value, between.Params[0].Type)
		eq := r.Operation(OpIsEqualTo)
		require.Len(t, eq.Params, 1)
		assert.Same(t, r.Value, eq.Params[0].Type)
	}
}

const library = `
database library {
  table authors @item("Author") {
    @key handle: string;
    name: string;
    mentor: Author;
    home: Shelf;
  }
  table shelves @item("Shelf") {
    @autoincrement id: number;
    room: string;
  }
  table books {
    @autoincrement id: number;
    @index author: Author;
    title: string;
  }
}
`

func TestBuild_Joins(t *testing.T) {
	p := build(t, library, DefaultJoinDepth)
	books := p.Table("books")
	require.NotNil(t, books)

	author := books.Item.Property("author")
	assert.Equal(t, "Author", author.Join)
	assert.Equal(t, TypeObject, author.Type.Kind)
	assert.Equal(t, "Author", author.Type.Shape.Name)
	// one level: the author's own joins stay scalar.
	assert.Equal(t, "{handle: string, name: string, mentor: string, home: number}", author.Type.String())

	assert.Equal(t, "string", books.Stored.Property("author").Type.String())
	assert.Equal(t, "Author", books.Stored.Property("author").Join)

	add := books.AddArgs.Property("author")
	assert.Equal(t, "string | AuthorAddArgs", add.Type.String())
	assert.False(t, add.Optional)

	assert.Equal(t, "number | {id: number} | {author: string}", books.GetArgsType().String())
	assert.Equal(t, "string", books.RangeIndex("author").Value.String())
}

func TestBuild_JoinDepth(t *testing.T) {
	tests := []struct {
		depth int
		want  string
	}{
		{depth: 0, want: "{id: number, author: string, title: string}"},
		{depth: 1, want: "{id: number, author: {handle: string, name: string, mentor: string, home: number}, title: string}"},
		{depth: 2, want: "{id: number, author: {handle: string, name: string, mentor: string, home: {id: number, room: string}}, title: string}"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p := build(t, library, tt.depth)
			assert.Equal(t, tt.want, p.Table("books").Item.String())
		})
	}
}

func TestBuild_CyclesKeepForeignKey(t *testing.T) {
	p := build(t, library, 5)
	authors := p.Table("authors")
	mentor := authors.Item.Property("mentor")
	assert.Equal(t, "string", mentor.Type.String())
	assert.Equal(t, "Author", mentor.Join)
	assert.Equal(t, "{id: number, room: string}", authors.Item.Property("home").Type.String())

	p = build(t, `
database d {
  table a @item("A") { @key id: string; b: B; }
  table b @item("B") { @key id: number; a: A; }
}`, 5)
	assert.Equal(t, "{id: string, b: {id: number, a: string}}", p.Table("a").Item.String())
	assert.Equal(t, "{id: number, a: {id: string, b: number}}", p.Table("b").Item.String())
}

func TestBuild_Defaults(t *testing.T) {
	p := build(t, `
type Status = "draft" | "published";
database d {
  table posts @item("Post") {
    @key slug: string;
    status: Status | "draft";
    views: number | 0;
    ratio: number | 0.5;
    pinned: boolean | false;
    body: string;
  }
}`, DefaultJoinDepth)
	posts := p.Table("posts")
	assert.Equal(t,
		"{slug: string, status?: Status, views?: number, ratio?: number, pinned?: boolean, body: string}",
		posts.AddArgs.String())
	assert.Equal(t,
		"{slug: string, status: Status, views: number, ratio: number, pinned: boolean, body: string}",
		posts.Item.String())

	tests := []struct {
		field string
		want  any
	}{
		{"status", "draft"},
		{"views", int64(0)},
		{"ratio", 0.5},
		{"pinned", false},
	}
	for _, tt := range tests {
		prop := posts.AddArgs.Property(tt.field)
		require.NotNil(t, prop, tt.field)
		assert.True(t, prop.HasDefault, tt.field)
		assert.Equal(t, tt.want, prop.Default, tt.field)
		assert.False(t, posts.Item.Property(tt.field).Optional, tt.field)
	}
	assert.False(t, posts.AddArgs.Property("body").HasDefault)

	require.Len(t, p.Aliases, 1)
	assert.Equal(t, "Status", p.Aliases[0].Name)
	assert.Equal(t, `"draft" | "published"`, p.Aliases[0].Type.String())
}

func TestBuild_KeyKeptInAddArgs(t *testing.T) {
	p := build(t, `database d { table users { @key email: string; name: string; } }`, DefaultJoinDepth)
	users := p.Table("users")
	assert.False(t, users.AutoIncrement)
	assert.Equal(t, "{email: string, name: string}", users.AddArgs.String())
	assert.Equal(t, "UsersAddArgs", users.AddArgs.Name)
}

func TestBuild_Types(t *testing.T) {
	p := build(t, `
type Tags = Array<string>;
database d {
  table events {
    @key id: string;
    at: Date;
    tags: Tags;
    scores: Array<number>;
    weight: number | string;
  }
}`, DefaultJoinDepth)
	assert.Equal(t,
		"{id: string, at: Date, tags: Tags, scores: Array<number>, weight: number | string}",
		p.Table("events").Item.String())
	assert.Equal(t, "Array<string>", p.Aliases[0].Type.String())
}

func TestBuild_SkipsFailedTables(t *testing.T) {
	s := resolveSchema(t, `
database d {
  table broken { name: string; }
  table refs { @key id: string; target: Broken; }
  table fine { @key id: string; }
}`)
	require.NotEmpty(t, s.AllDiagnostics())
	p, err := Build(s, Options{JoinDepth: DefaultJoinDepth})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnplannable)
	assert.True(t, IsTableError(err))
	assert.Contains(t, err.Error(), `plan: table "broken" has errors`)
	assert.Contains(t, err.Error(), `plan: table "refs" joins table "broken" which has errors`)
	require.Len(t, p.Tables(), 1)
	assert.Equal(t, "fine", p.Tables()[0].Table)

	_, err = PlanTable(s.Table("refs"), Options{})
	var te *TableError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "broken", te.Dependency)
}

func TestLiteralString(t *testing.T) {
	assert.Equal(t, `"a\"b"`, (&Type{Kind: TypeLiteral, Literal: `a"b`}).String())
	assert.Equal(t, "1", (&Type{Kind: TypeLiteral, Literal: int64(1)}).String())
	assert.Equal(t, "2.0", (&Type{Kind: TypeLiteral, Literal: 2.0}).String())
	assert.Equal(t, "0.25", (&Type{Kind: TypeLiteral, Literal: 0.25}).String())
	assert.Equal(t, "true", (&Type{Kind: TypeLiteral, Literal: true}).String())
}
