package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/recipebox/internal/apperr"
)

func TestJSONFile_MissingDocumentIsReadFailure(t *testing.T) {
	ctx := context.Background()
	s := NewJSONFile(afero.NewMemMapFs(), "/recipes.json")

	_, err := s.List(ctx)
	assert.ErrorIs(t, err, apperr.ErrStorageRead)

	_, err = s.Upsert(ctx, mustRecipe(t, `{"id":"1"}`))
	assert.ErrorIs(t, err, apperr.ErrStorageRead)

	assert.ErrorIs(t, s.DeleteByID(ctx, "1"), apperr.ErrStorageRead)
}

func TestJSONFile_CorruptDocumentIsReadFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/recipes.json", []byte(`{"not":"an array"}`), 0o644))

	_, err := NewJSONFile(fs, "/recipes.json").List(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStorageRead)
}

func TestJSONFile_PrettyPrinted(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewJSONFile(fs, "/recipes.json")
	require.NoError(t, s.EnsureExists())

	_, err := s.Upsert(context.Background(), mustRecipe(t, `{"id":"1","title":"Soup"}`))
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/recipes.json")
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"id\": \"1\",\n    \"title\": \"Soup\"\n  }\n]", string(data))
}

func TestJSONFile_EnsureExistsKeepsContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/recipes.json", []byte(`[{"id":"keep"}]`), 0o644))

	s := NewJSONFile(fs, "/recipes.json")
	require.NoError(t, s.EnsureExists())

	got, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, ids(got))
}

func TestJSONFile_AtomicWriteOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipes.json")
	s := NewJSONFile(afero.NewOsFs(), path)
	require.NoError(t, s.EnsureExists())

	ctx := context.Background()
	_, err := s.Upsert(ctx, mustRecipe(t, `{"id":"1","title":"v1"}`))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, mustRecipe(t, `{"id":"1","title":"v2"}`))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v2"`)

	matches, _ := filepath.Glob(filepath.Join(dir, ".recipes-tmp-*"))
	assert.Empty(t, matches, "leftover temp files")
}

func TestJSONFile_ReadOnlyFsIsWriteFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/recipes.json", []byte(`[]`), 0o644))
	s := NewJSONFile(afero.NewReadOnlyFs(base), "/recipes.json")

	_, err := s.Upsert(context.Background(), mustRecipe(t, `{"id":"1"}`))
	assert.ErrorIs(t, err, apperr.ErrStorageWrite)
}
