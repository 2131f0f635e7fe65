package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pokewatch/internal/model"
)

func TestSaveWritesInBackground(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	store := NewStore(dir, zap.NewNop())
	store.now = func() time.Time { return time.Date(2025, 3, 1, 10, 4, 5, 0, time.UTC) }

	name := store.Save("jb hifi", model.Content{Kind: model.ContentHTML, Body: []byte("<html></html>"), Provider: "browserless"})
	store.Wait()

	assert.Equal(t, "jb_hifi-browserless-20250301-100405.000000.html", name)

	path, err := store.Path(name)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
}

func TestSaveJSONExtension(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	name := store.Save("jbhifi", model.Content{Kind: model.ContentJSON, Body: []byte(`{}`), Provider: "algolia"})
	store.Wait()
	assert.True(t, strings.HasSuffix(name, ".json"))
}

func TestSaveFailureDoesNotPanic(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	store := NewStore(file, zap.NewNop())
	name := store.Save("jbhifi", model.Content{Kind: model.ContentHTML, Provider: "collection"})
	store.Wait()

	assert.NotEmpty(t, name)
}

func TestPathRejectsOtherFilesInDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache.json"), []byte(`{"jbhifi":["x"]}`), 0o644))
	store := NewStore(dir, zap.NewNop())

	_, err := store.Path("cache.json")
	assert.True(t, errors.Is(err, ErrInvalidName))
}

func TestPath(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())

	for _, name := range []string{
		"../secret", "..", ".hidden", "a/b.html", "",
		"cache.json", "targets.json5", ".env",
		"jbhifi-algolia-20250301-100405.000000.txt",
		"../jbhifi-algolia-20250301-100405.000000.json",
	} {
		_, err := store.Path(name)
		assert.True(t, errors.Is(err, ErrInvalidName), name)
	}

	_, err := store.Path("jbhifi-algolia-20250301-100405.000000.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}
