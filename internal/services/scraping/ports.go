package scraping

import (
	"context"

	"pokewatch/internal/model"
	"pokewatch/internal/telegram"
)

// Provider retrieves the raw listing content for a target using one retrieval
// strategy. Failures are returned, never panicked.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, target model.Target) (model.Content, error)
}

type Notifier interface {
	Notify(ctx context.Context, lines []string) []telegram.BatchResult
}

// SnapshotSaver is invoked when content yields no product links. It must not
// block the run.
type SnapshotSaver interface {
	Save(target string, content model.Content) string
}
