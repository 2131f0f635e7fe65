package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	selectSeenLinks = `SELECT link FROM seen_links WHERE target = $1 ORDER BY link`
	insertSeenLinks = `INSERT INTO seen_links (target, link)
SELECT $1, unnest($2::text[])
ON CONFLICT (target, link) DO NOTHING`
)

// SeenRepository stores one row per (target, link). Rows are only ever
// inserted, so concurrent writers cannot lose each other's links.
type SeenRepository struct {
	db DBTX
}

func NewSeenRepository(db DBTX) *SeenRepository {
	return &SeenRepository{db: db}
}

func (r *SeenRepository) Load(ctx context.Context, target string) ([]string, error) {
	rows, err := r.db.Query(ctx, selectSeenLinks, target)
	if err != nil {
		return nil, fmt.Errorf("query seen links: %w", err)
	}
	links, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan seen links: %w", err)
	}
	return links, nil
}

func (r *SeenRepository) Save(ctx context.Context, target string, links []string) error {
	if len(links) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, insertSeenLinks, target, links); err != nil {
		return fmt.Errorf("insert seen links: %w", err)
	}
	return nil
}
