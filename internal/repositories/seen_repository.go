package repositories

import (
	"context"
	"errors"
)

var ErrCorrupt = errors.New("seen store is corrupt")

// SeenRepository persists the links already reported for each target. Save
// receives the full merged set; implementations may store it as a union with
// what they already hold, but must never drop links.
type SeenRepository interface {
	Load(ctx context.Context, target string) ([]string, error)
	Save(ctx context.Context, target string, links []string) error
}
