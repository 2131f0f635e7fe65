package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokewatch/internal/db"
)

func TestSeenRepository(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, db.EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, `DELETE FROM seen_links WHERE target = 'test-target'`)
	require.NoError(t, err)

	repo := NewSeenRepository(pool)

	links, err := repo.Load(ctx, "test-target")
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, repo.Save(ctx, "test-target", []string{"B", "A"}))
	require.NoError(t, repo.Save(ctx, "test-target", []string{"A", "C"}))
	require.NoError(t, repo.Save(ctx, "test-target", nil))

	links, err = repo.Load(ctx, "test-target")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, links)
}
