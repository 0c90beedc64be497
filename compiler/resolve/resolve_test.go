package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kvgen/compiler/ast"
	"github.com/syssam/kvgen/compiler/diag"
	"github.com/syssam/kvgen/compiler/lexer"
	"github.com/syssam/kvgen/compiler/parser"
	"github.com/syssam/kvgen/compiler/source"
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

func parse(t *testing.T, src string) *ast.Schema {
	t.Helper()
	toks, err := lexer.Tokenize("test.schema", src)
	require.NoError(t, err)
	tree, errs := parser.Parse(toks, diag.FailFast)
	require.Empty(t, errs)
	return tree
}

func resolveAll(t *testing.T, src string) *Schema {
	t.Helper()
	return Resolve(parse(t, src), Options{Mode: diag.CollectAll})
}

func mustResolve(t *testing.T, src string) *Schema {
	t.Helper()
	s := resolveAll(t, src)
	require.Empty(t, s.AllDiagnostics())
	return s
}

func kinds(l diag.List) []diag.Kind {
	ks := make([]diag.Kind, len(l))
	for i, d := range l {
		ks[i] = d.Kind
	}
	return ks
}

func TestResolve_Blog(t *testing.T) {
	s := mustResolve(t, blog)
	require.Len(t, s.Databases, 1)
	assert.Equal(t, "Blog", s.Databases[0].Name)
	assert.Equal(t, 1, s.Databases[0].Version)

	posts := s.Table("Posts")
	require.NotNil(t, posts)
	assert.Equal(t, "Post", posts.ItemName)
	require.Len(t, posts.Indexes, 3)

	id := posts.Indexes[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, IndexKey, id.Kind)
	assert.True(t, id.AutoIncrement)
	assert.Equal(t, []string{"id"}, id.FieldNames())

	title := posts.Indexes[1]
	assert.Equal(t, "title", title.Name)
	assert.Equal(t, IndexSecondary, title.Kind)
	assert.True(t, title.Unique)
	assert.Equal(t, []string{"title"}, title.FieldNames())

	compound := posts.Indexes[2]
	assert.Equal(t, "title_author", compound.Name)
	assert.Equal(t, IndexSecondary, compound.Kind)
	assert.False(t, compound.Unique)
	assert.True(t, compound.Compound())
	assert.Equal(t, []string{"title", "author"}, compound.FieldNames())

	assert.Empty(t, posts.Joins)
	assert.Empty(t, posts.Defaults)
	for _, f := range posts.Fields {
		require.NotNil(t, f.Type, f.Name)
	}
	assert.Equal(t, KindNumber, posts.Field("id").Type.Kind)
	assert.Equal(t, KindString, posts.Field("author").Type.Kind)
	assert.Equal(t, []*Table{posts}, s.Lookup("Post"))
	assert.Equal(t, []*Table{posts}, s.Lookup("Posts"))
}

func TestResolve_DefaultVersionAndItemName(t *testing.T) {
	s := mustResolve(t, `database app { table users { @key email: string; } }`)
	assert.Equal(t, DefaultVersion, s.Databases[0].Version)
	assert.Equal(t, "Users", s.Tables[0].ItemName)
}

func TestResolve_PrimaryKeyTotality(t *testing.T) {
	s := mustResolve(t, `
database shop {
  table users { @key email: string; name: string; }
  table orders { @autoincrement id: number; @index user: User; }
  table items { @index sku: string; @key code: string; }
}`)
	for _, tbl := range s.Tables {
		var keys int
		for _, idx := range tbl.Indexes {
			if idx.Kind == IndexKey {
				keys++
			}
		}
		assert.Equal(t, 1, keys, tbl.Name)
		require.NotNil(t, tbl.KeyField(), tbl.Name)
	}
	assert.Equal(t, "code", s.Table("items").KeyField().Name)
}

func TestResolve_TableIDs(t *testing.T) {
	s := mustResolve(t, `
database a { table x { @key k: string; } }
database b { table y { @key k: string; } table z { @key k: string; } }`)
	for i, tbl := range s.Tables {
		assert.Equal(t, i, tbl.ID)
	}
	assert.Equal(t, "b", s.Tables[2].Database.Name)
}

func TestResolve_DuplicateItemAlias(t *testing.T) {
	s := resolveAll(t, `
database blog {
  table posts @item("Post") { @key id: string; }
  table drafts @item("Post") { @key id: string; }
}`)
	errs := s.Diagnostics.OfKind(diag.DuplicateItemAlias)
	require.Len(t, errs, 2)
	posts, drafts := s.Table("posts"), s.Table("drafts")
	assert.Equal(t, posts.Location(), errs[0].Location)
	assert.Equal(t, []source.Location{drafts.Location()}, errs[0].Related)
	assert.Equal(t, drafts.Location(), errs[1].Location)
	assert.Equal(t, []source.Location{posts.Location()}, errs[1].Related)
	assert.Contains(t, errs[0].Message, `"Post"`)
}

func TestResolve_DuplicateDefinitions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		// table is empty when the error is schema-wide.
		table string
	}{
		{
			name: "database",
			src:  `database a { } database a { }`,
		},
		{
			name: "table",
			src:  `database a { table t { @key k: string; } table t { @key k: string; } }`,
		},
		{
			name: "type",
			src:  `type T = string; type T = number;`,
		},
		{
			name:  "field",
			src:   `database a { table t { @key k: string; k: number; } }`,
			table: "t",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveAll(t, tt.src)
			errs := s.Diagnostics
			if tt.table != "" {
				errs = s.Table(tt.table).Diagnostics
			}
			require.Equal(t, []diag.Kind{diag.DuplicateDefinition}, kinds(errs))
			require.Len(t, errs[0].Related, 1)
			assert.Less(t, errs[0].Related[0].Start.Offset, errs[0].Location.Start.Offset)
		})
	}
}

func TestResolve_DuplicateFieldDropped(t *testing.T) {
	s := resolveAll(t, `database a { table t { @key k: string; v: string; v: number; } }`)
	tbl := s.Table("t")
	require.Len(t, tbl.Fields, 2)
	assert.Equal(t, "string", ast.TypeString(tbl.Field("v").Def.Alternatives[0]))
}

func TestResolve_Modes(t *testing.T) {
	const src = `
database a {
  table one { name: string; }
  table two { name: string; }
  table three { @key name: string; }
}`
	tree := parse(t, src)

	all := Resolve(tree, Options{Mode: diag.CollectAll})
	assert.Equal(t, []diag.Kind{diag.MissingPrimaryKey, diag.MissingPrimaryKey}, kinds(all.AllDiagnostics()))
	assert.True(t, all.Table("three").OK())
	assert.NotNil(t, all.Table("three").Key())

	fast := Resolve(tree, Options{Mode: diag.FailFast})
	assert.Equal(t, []diag.Kind{diag.MissingPrimaryKey}, kinds(fast.AllDiagnostics()))
	assert.Nil(t, fast.Table("three").Key())
}

func TestResolve_FailFastSchemaErrors(t *testing.T) {
	s := Resolve(parse(t, `
database a {
  table t @item("X") { @key k: string; }
  table u @item("X") { k: string; }
}`), Options{Mode: diag.FailFast})
	assert.Equal(t, []diag.Kind{diag.DuplicateItemAlias, diag.DuplicateItemAlias}, kinds(s.AllDiagnostics()))
	assert.Nil(t, s.Table("t").Indexes)
}

func TestResolve_ResolveTableRetryable(t *testing.T) {
	s := resolveAll(t, `
database a {
  table t {
    @key k: string;
    @unique v: string;
    ref: Missing;
    d: number | "x";
  }
}`)
	tbl := s.Table("t")
	first := append(diag.List(nil), tbl.Diagnostics...)
	require.Equal(t, []diag.Kind{diag.UnresolvedUniqueAnnotation, diag.UnknownTypeReference, diag.InvalidDefaultLiteral}, kinds(first))

	s.ResolveTable(tbl)
	assert.Equal(t, first, tbl.Diagnostics)
	s.ResolveTable(tbl)
	assert.Equal(t, first, tbl.Diagnostics)
}

func TestResolve_FieldTypesOnlyWhenOK(t *testing.T) {
	s := resolveAll(t, `database a { table t { name: string; } }`)
	assert.Nil(t, s.Table("t").Field("name").Type)
}

func TestResolve_UnknownAnnotation(t *testing.T) {
	const src = `
database a @shard("x") {
  table t @cached {
    @key @trim k: string;
  }
}`
	s := resolveAll(t, src)
	errs := s.AllDiagnostics()
	assert.Equal(t, []diag.Kind{diag.UnknownAnnotation, diag.UnknownAnnotation, diag.UnknownAnnotation}, kinds(errs))
	assert.Contains(t, errs[0].Message, `@shard on database "a"`)

	lenient := Resolve(parse(t, src), Options{Mode: diag.CollectAll, LenientAnnotations: true})
	assert.Empty(t, lenient.AllDiagnostics())
	require.Len(t, lenient.Ignored, 3)
	assert.Equal(t, "shard", lenient.Ignored[0].Name.Value)
	assert.Equal(t, "cached", lenient.Ignored[1].Name.Value)
	assert.Equal(t, "trim", lenient.Ignored[2].Name.Value)
}

func TestResolve_Aliases(t *testing.T) {
	s := mustResolve(t, `
type Status = "draft" | "published" | Archived;
type Archived = "archived";
type Tags = Array<string>;
database a {
  table posts {
    @key slug: string;
    status: Status | "draft";
    tags: Tags;
    created: Date;
    scores: Array<number>;
  }
}`)
	require.Len(t, s.Aliases, 2)
	status := s.Alias("Status")
	require.NotNil(t, status)
	require.Len(t, status.Alternatives, 3)
	assert.Equal(t, KindLiteral, status.Alternatives[0].Kind)
	assert.Equal(t, KindAlias, status.Alternatives[2].Kind)
	assert.Same(t, s.Alias("Archived"), status.Alternatives[2].Alias)

	posts := s.Table("posts")
	assert.Equal(t, "Status", posts.Field("status").Type.String())
	require.NotNil(t, posts.Field("status").Default)
	assert.Equal(t, "Tags", posts.Field("tags").Type.String())
	assert.Equal(t, KindDate, posts.Field("created").Type.Kind)
	assert.Equal(t, "Array<number>", posts.Field("scores").Type.String())
	assert.Empty(t, posts.Joins)
}

func TestResolve_AliasErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []diag.Kind
	}{
		{
			name: "unknown",
			src:  `type T = Missing;`,
			want: []diag.Kind{diag.UnknownTypeReference},
		},
		{
			name: "table reference",
			src:  `type T = User; database a { table users { @key k: string; } }`,
			want: []diag.Kind{diag.InvalidJoinType},
		},
		{
			name: "cycle",
			src:  `type A = B; type B = A;`,
			want: []diag.Kind{diag.UnknownTypeReference, diag.UnknownTypeReference},
		},
		{
			name: "alias arguments",
			src:  `type A = string; type B = A<string>;`,
			want: []diag.Kind{diag.InvalidTypeArguments},
		},
		{
			name: "date arguments",
			src:  `type A = Date<string>;`,
			want: []diag.Kind{diag.InvalidTypeArguments},
		},
		{
			name: "array arity",
			src:  `type A = Array<string, number>;`,
			want: []diag.Kind{diag.InvalidTypeArguments},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveAll(t, tt.src)
			assert.Equal(t, tt.want, kinds(s.Diagnostics))
		})
	}
}

func TestResolve_RecursiveAliasIsGrounded(t *testing.T) {
	s := mustResolve(t, `type Tree = string | Array<Tree>;`)
	tree := s.Alias("Tree")
	require.Len(t, tree.Alternatives, 2)
	assert.Equal(t, "Array<Tree>", tree.Alternatives[1].String())
}

func TestResolve_AliasShadowsTable(t *testing.T) {
	s := mustResolve(t, `
type User = string;
database a {
  table users { @key k: string; }
  table posts { @key k: string; author: User; }
}`)
	posts := s.Table("posts")
	assert.Empty(t, posts.Joins)
	assert.Equal(t, KindAlias, posts.Field("author").Type.Kind)
}
