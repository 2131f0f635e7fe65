package model

type ContentKind string

const (
	ContentHTML ContentKind = "html"
	ContentJSON ContentKind = "json"
)

// Content is the raw body a provider returned, tagged with the provider that
// produced it.
type Content struct {
	Kind     ContentKind
	Body     []byte
	Provider string
}
