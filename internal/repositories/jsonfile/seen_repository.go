package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pokewatch/internal/repositories"
)

// SeenRepository keeps every target's seen links in one JSON document:
//
//	{"jbhifi": ["https://...", ...]}
//
// A document holding a bare JSON array (the single-target layout) is read as
// the seen list of every target. On Save it is kept under LegacyKey, which
// every target's Load includes.
type SeenRepository struct {
	path string
	mu   sync.Mutex
}

const LegacyKey = "*legacy*"

func NewSeenRepository(path string) *SeenRepository {
	return &SeenRepository{path: path}
}

func (r *SeenRepository) Path() string {
	return r.path
}

func (r *SeenRepository) Load(_ context.Context, target string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	legacy, ok := doc[LegacyKey]
	if !ok {
		return doc[target], nil
	}
	return union(doc[target], legacy), nil
}

func (r *SeenRepository) Save(_ context.Context, target string, links []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		// A corrupt document is replaced rather than blocking every future run.
		if !errors.Is(err, repositories.ErrCorrupt) {
			return err
		}
		doc = map[string][]string{}
	}
	doc[target] = union(doc[target], doc[LegacyKey], links)

	return r.write(doc)
}

// read returns the keyed document, with a flat array moved under LegacyKey.
func (r *SeenRepository) read() (map[string][]string, error) {
	content, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seen store: %w", err)
	}

	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return map[string][]string{}, nil
	}

	if content[0] == '[' {
		var flat []string
		if err := json.Unmarshal(content, &flat); err != nil {
			return nil, fmt.Errorf("%w: %v", repositories.ErrCorrupt, err)
		}
		return map[string][]string{LegacyKey: union(flat)}, nil
	}

	var doc map[string][]string
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrCorrupt, err)
	}
	if doc == nil {
		doc = map[string][]string{}
	}
	return doc, nil
}

func (r *SeenRepository) write(doc map[string][]string) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write seen store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close seen store: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace seen store: %w", err)
	}
	return nil
}

func union(lists ...[]string) []string {
	set := map[string]struct{}{}
	for _, list := range lists {
		for _, v := range list {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
