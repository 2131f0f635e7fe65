package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "pokewatch:seen:"

// SeenRepository keeps one Redis set per target.
type SeenRepository struct {
	client *redis.Client
}

func NewSeenRepository(client *redis.Client) *SeenRepository {
	return &SeenRepository{client: client}
}

func (r *SeenRepository) key(target string) string {
	return seenKeyPrefix + target
}

func (r *SeenRepository) Load(ctx context.Context, target string) ([]string, error) {
	links, err := r.client.SMembers(ctx, r.key(target)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", r.key(target), err)
	}
	sort.Strings(links)
	return links, nil
}

// Save adds links to the target's set; SADD makes the write a union.
func (r *SeenRepository) Save(ctx context.Context, target string, links []string) error {
	if len(links) == 0 {
		return nil
	}
	members := make([]any, len(links))
	for i, link := range links {
		members[i] = link
	}
	if err := r.client.SAdd(ctx, r.key(target), members...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", r.key(target), err)
	}
	return nil
}
