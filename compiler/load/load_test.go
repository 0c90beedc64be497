package load

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIsSchema(t *testing.T) {
	assert.True(t, IsSchema("blog.schema"))
	assert.True(t, IsSchema("dir/blog.schema"))
	assert.False(t, IsSchema("blog.go"))
	assert.False(t, IsSchema(".blog.schema"))
	assert.False(t, IsSchema("_blog.schema"))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.schema"), "")
	writeFile(t, filepath.Join(dir, "a.schema"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	writeFile(t, filepath.Join(dir, "nested", "c.schema"), "")
	writeFile(t, filepath.Join(dir, ".git", "d.schema"), "")
	writeFile(t, filepath.Join(dir, "_old", "e.schema"), "")
	other := filepath.Join(t.TempDir(), "custom.kv")
	writeFile(t, other, "")

	files, err := Discover(dir, other, filepath.Join(dir, "a.schema"))
	require.NoError(t, err)
	want := []string{
		filepath.Join(dir, "a.schema"),
		filepath.Join(dir, "b.schema"),
		filepath.Join(dir, "nested", "c.schema"),
		other,
	}
	assert.ElementsMatch(t, want, files)
	assert.IsNonDecreasing(t, files)
}

func TestDiscover_Missing(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Path, "missing")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "blog.schema"), "database Blog {}")
	writeFile(t, filepath.Join(dir, "shop.schema"), "database Shop {}")

	files, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "blog.schema"), files[0].Path)
	assert.Equal(t, "database Blog {}", files[0].Source)
	assert.Equal(t, "database Shop {}", files[1].Source)
}

func TestLoad_Empty(t *testing.T) {
	files, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
