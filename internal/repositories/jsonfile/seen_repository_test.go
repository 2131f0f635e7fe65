package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokewatch/internal/repositories"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	repo := NewSeenRepository(filepath.Join(t.TempDir(), "cache.json"))

	links, err := repo.Load(context.Background(), "jbhifi")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	repo := NewSeenRepository(path)

	require.NoError(t, repo.Save(ctx, "jbhifi", []string{"B", "A"}))
	require.NoError(t, repo.Save(ctx, "ebgames", []string{"C"}))

	links, err := repo.Load(ctx, "jbhifi")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, links)

	links, err = repo.Load(ctx, "ebgames")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, links)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, map[string][]string{"jbhifi": {"A", "B"}, "ebgames": {"C"}}, doc)
}

func TestSaveNeverShrinks(t *testing.T) {
	ctx := context.Background()
	repo := NewSeenRepository(filepath.Join(t.TempDir(), "cache.json"))

	require.NoError(t, repo.Save(ctx, "jbhifi", []string{"A", "B"}))
	require.NoError(t, repo.Save(ctx, "jbhifi", []string{"C"}))

	links, err := repo.Load(ctx, "jbhifi")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, links)
}

func TestLoadFlatList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["https://x/products/a"]`), 0o644))
	repo := NewSeenRepository(path)

	links, err := repo.Load(ctx, "jbhifi")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/products/a"}, links)

	require.NoError(t, repo.Save(ctx, "jbhifi", []string{"https://x/products/b"}))
	links, err = repo.Load(ctx, "jbhifi")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/products/a", "https://x/products/b"}, links)
}

func TestFlatListStaysSeenForEveryTarget(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["A","B"]`), 0o644))
	repo := NewSeenRepository(path)

	before, err := repo.Load(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, before)

	require.NoError(t, repo.Save(ctx, "first", []string{"A", "B", "C"}))

	after, err := repo.Load(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, after)

	first, err := repo.Load(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, first)

	require.NoError(t, repo.Save(ctx, "second", []string{"D"}))
	after, err = repo.Load(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, after)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []string{"A", "B"}, doc[LegacyKey])
}

func TestCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"jbhifi": [`), 0o644))
	repo := NewSeenRepository(path)

	_, err := repo.Load(ctx, "jbhifi")
	assert.True(t, errors.Is(err, repositories.ErrCorrupt))

	require.NoError(t, repo.Save(ctx, "jbhifi", []string{"A"}))
	links, err := repo.Load(ctx, "jbhifi")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, links)
}
