package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"pokewatch/internal/services/scraping"
)

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, scraping.Summary{
		RunID:      "abc",
		Success:    true,
		TotalLinks: 2,
		NewLinks:   1,
		Targets: []scraping.TargetResult{{
			Target:     "jbhifi",
			Source:     "algolia",
			TotalLinks: 2,
			NewLinks:   1,
			Persisted:  true,
			Samples:    []string{"https://www.jbhifi.com.au/products/a"},
		}},
	}, true)

	out := buf.String()
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "jbhifi")
	assert.Contains(t, out, "algolia")
	assert.Contains(t, out, "https://www.jbhifi.com.au/products/a")
}
