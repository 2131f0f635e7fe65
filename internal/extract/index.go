package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pokewatch/internal/model"
	"pokewatch/internal/providers/common"
)

const (
	DefaultHandleField = "handle"
	// HandlePlaceholder is replaced in IndexRule.URLTemplate, whatever field
	// the handle is read from.
	HandlePlaceholder = "{handle}"
)

type indexPage struct {
	Hits []map[string]any `json:"hits"`
}

// IndexLinks expands search-index records into product URLs. Records must match
// every filter exactly and carry a non-empty handle.
func IndexLinks(body []byte, rule model.IndexRule) (model.LinkSet, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var page indexPage
	if err := decoder.Decode(&page); err != nil {
		return nil, fmt.Errorf("json parse error: %w", err)
	}

	field := rule.HandleField
	if field == "" {
		field = DefaultHandleField
	}

	links := model.NewLinkSet()
	for _, hit := range page.Hits {
		if !matchesFilters(hit, rule.Filters) {
			continue
		}
		handle := strings.TrimSpace(common.ToString(hit[field]))
		if handle == "" {
			continue
		}
		links.Add(strings.ReplaceAll(rule.URLTemplate, HandlePlaceholder, handle))
	}
	return links, nil
}

func matchesFilters(hit map[string]any, filters map[string]string) bool {
	for field, want := range filters {
		if common.ToString(hit[field]) != want {
			return false
		}
	}
	return true
}
