package extract

import (
	"errors"
	"fmt"

	"pokewatch/internal/model"
)

var ErrUnsupportedContent = errors.New("unsupported content kind")

// Links extracts the product links a target's rules select from raw provider
// content. An empty set is a valid result, not an error.
func Links(content model.Content, target model.Target) (model.LinkSet, error) {
	switch content.Kind {
	case model.ContentHTML:
		return HTMLLinks(content.Body, target.BaseOrigin, target.HTML)
	case model.ContentJSON:
		return IndexLinks(content.Body, target.Index)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContent, content.Kind)
	}
}
