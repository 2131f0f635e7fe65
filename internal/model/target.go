package model

const (
	ProviderAlgolia     = "algolia"
	ProviderCollection  = "collection"
	ProviderBrowserless = "browserless"
	ProviderChromium    = "chromium"
	ProviderStealth     = "stealth"
)

// Target is one monitored source: a listing page and/or a search index.
type Target struct {
	Name          string    `json:"name"`
	BaseOrigin    string    `json:"base_origin"`
	CollectionURL string    `json:"collection_url"`
	Providers     []string  `json:"providers"`
	HTML          HTMLRule  `json:"html"`
	Index         IndexRule `json:"index"`
}

// HTMLRule selects anchors from rendered listing pages. An href is kept when it
// contains at least one keyword, compared case-insensitively.
type HTMLRule struct {
	Selector string   `json:"selector"`
	Keywords []string `json:"keywords"`
}

// IndexRule describes a search-index endpoint whose records carry a handle
// that is expanded into a product URL.
type IndexRule struct {
	URL         string            `json:"url"`
	AppID       string            `json:"app_id"`
	APIKey      string            `json:"api_key"`
	Filters     map[string]string `json:"filters"`
	HandleField string            `json:"handle_field"`
	URLTemplate string            `json:"url_template"`
	HitsPerPage int               `json:"hits_per_page"`
	MaxPages    int               `json:"max_pages"`
}

func (r IndexRule) Configured() bool {
	return r.URL != "" && r.AppID != "" && r.APIKey != ""
}
