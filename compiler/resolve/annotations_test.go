package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kvgen/compiler/diag"
)

func TestDefaultItemName(t *testing.T) {
	assert.Equal(t, "Posts", DefaultItemName("posts"))
	assert.Equal(t, "Posts", DefaultItemName("Posts"))
	assert.Equal(t, "UserProfiles", DefaultItemName("userProfiles"))
}

func TestResolveDatabaseAnnotations(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		version int
		want    []diag.Kind
	}{
		{name: "default", src: `database a {}`, version: DefaultVersion},
		{name: "integer", src: `database a @version(3) {}`, version: 3},
		{name: "numeric string", src: `database a @version("7") {}`, version: 7},
		{name: "no argument", src: `database a @version {}`, version: DefaultVersion, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "two arguments", src: `database a @version(1, 2) {}`, version: DefaultVersion, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "zero", src: `database a @version(0) {}`, version: DefaultVersion, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "float", src: `database a @version(1.5) {}`, version: DefaultVersion, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "text", src: `database a @version("one") {}`, version: DefaultVersion, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "duplicate", src: `database a @version(2) @version(3) {}`, version: 2, want: []diag.Kind{diag.DuplicateAnnotation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := parse(t, tt.src).Databases()[0]
			facts, ignored, errs := ResolveDatabaseAnnotations(db, false)
			assert.Equal(t, tt.version, facts.Version)
			assert.Empty(t, ignored)
			assert.Equal(t, tt.want, kinds(errs))
		})
	}
}

func TestResolveTableAnnotations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		item string
		want []diag.Kind
	}{
		{name: "none", src: `table posts {}`},
		{name: "explicit", src: `table posts @item("Post") {}`, item: "Post"},
		{name: "bare", src: `table posts @item {}`},
		{name: "two arguments", src: `table posts @item("A", "B") {}`, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "not a string", src: `table posts @item(1) {}`, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "not an identifier", src: `table posts @item("blog post") {}`, want: []diag.Kind{diag.InvalidAnnotationArguments}},
		{name: "duplicate", src: `table posts @item("A") @item("B") {}`, item: "A", want: []diag.Kind{diag.DuplicateAnnotation}},
		{name: "unknown", src: `table posts @items("A") {}`, want: []diag.Kind{diag.UnknownAnnotation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := parse(t, "database d { "+tt.src+" }").Databases()[0].Tables[0]
			facts, _, errs := ResolveTableAnnotations(def, false)
			assert.Equal(t, tt.item, facts.ItemName)
			assert.Equal(t, tt.want, kinds(errs))
		})
	}
}

func TestResolveTableAnnotations_ArityMessage(t *testing.T) {
	def := parse(t, `database d { table posts @item("A", "B") {} }`).Databases()[0].Tables[0]
	_, _, errs := ResolveTableAnnotations(def, false)
	require.Len(t, errs, 1)
	assert.Equal(t, "@item takes at most 1 argument, got 2", errs[0].Message)
	assert.Equal(t, def.Annotations[0].Loc, errs[0].Location)
}

func TestResolveFieldAnnotations(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(*testing.T, FieldFacts)
		want  []diag.Kind
	}{
		{
			name: "autoincrement",
			src:  `@autoincrement id: number;`,
			check: func(t *testing.T, f FieldFacts) {
				assert.NotNil(t, f.AutoIncrement)
				assert.True(t, f.PrimaryKey())
			},
		},
		{
			name: "key",
			src:  `@key id: string;`,
			check: func(t *testing.T, f FieldFacts) {
				assert.NotNil(t, f.Key)
				assert.True(t, f.PrimaryKey())
			},
		},
		{
			name: "autoincrement and key",
			src:  `@autoincrement @key id: number;`,
			want: []diag.Kind{diag.ConflictingPrimaryKey},
		},
		{
			name: "autoincrement on string",
			src:  `@autoincrement id: string;`,
			want: []diag.Kind{diag.InvalidAnnotationTarget},
		},
		{
			name: "autoincrement with argument",
			src:  `@autoincrement("x") id: number;`,
			want: []diag.Kind{diag.InvalidAnnotationArguments},
		},
		{
			name: "duplicate key",
			src:  `@key @key id: string;`,
			want: []diag.Kind{diag.DuplicateAnnotation},
		},
		{
			name: "implicit and group index",
			src:  `@index @index("g") title: string;`,
			check: func(t *testing.T, f FieldFacts) {
				require.Len(t, f.Indexes, 2)
				assert.Equal(t, "title", f.Indexes[0].Name)
				assert.False(t, f.Indexes[0].Group)
				assert.Equal(t, "g", f.Indexes[1].Name)
				assert.True(t, f.Indexes[1].Group)
			},
		},
		{
			name: "duplicate index",
			src:  `@index("g") @index("g") title: string;`,
			want: []diag.Kind{diag.DuplicateAnnotation},
		},
		{
			name: "index name not identifier",
			src:  `@index("by title") title: string;`,
			want: []diag.Kind{diag.InvalidAnnotationArguments},
		},
		{
			name: "unique on own index",
			src:  `@index("g") @index @unique title: string;`,
			check: func(t *testing.T, f FieldFacts) {
				assert.Equal(t, "title", f.UniqueIndex)
			},
		},
		{
			name: "unique on preceding group",
			src:  `@index("a") @index("b") @unique title: string;`,
			check: func(t *testing.T, f FieldFacts) {
				assert.Equal(t, "b", f.UniqueIndex)
			},
		},
		{
			name: "unique on following group",
			src:  `@unique @index("a") @index("b") title: string;`,
			check: func(t *testing.T, f FieldFacts) {
				assert.Equal(t, "a", f.UniqueIndex)
			},
		},
		{
			name: "unique on key",
			src:  `@key @unique id: string;`,
			check: func(t *testing.T, f FieldFacts) {
				assert.Equal(t, "id", f.UniqueIndex)
			},
		},
		{
			name: "unique without index",
			src:  `@unique title: string;`,
			want: []diag.Kind{diag.UnresolvedUniqueAnnotation},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := parse(t, "database d { table t { "+tt.src+" } }").Databases()[0].Tables[0].Fields[0]
			facts, _, errs := ResolveFieldAnnotations(def, false)
			assert.Equal(t, tt.want, kinds(errs))
			if tt.check != nil {
				tt.check(t, facts)
			}
		})
	}
}

func TestResolveFieldAnnotations_Lenient(t *testing.T) {
	def := parse(t, `database d { table t { @key @trim("x") @lower id: string; } }`).Databases()[0].Tables[0].Fields[0]
	facts, ignored, errs := ResolveFieldAnnotations(def, true)
	assert.Empty(t, errs)
	assert.NotNil(t, facts.Key)
	require.Len(t, ignored, 2)
	assert.Equal(t, "trim", ignored[0].Name.Value)
	assert.Equal(t, "lower", ignored[1].Name.Value)
}
