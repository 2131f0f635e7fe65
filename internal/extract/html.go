package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pokewatch/internal/model"
)

const (
	DefaultSelector = "a[href]"
	DefaultKeyword  = "/products/"
)

func HTMLLinks(body []byte, baseOrigin string, rule model.HTMLRule) (model.LinkSet, error) {
	base, err := url.Parse(strings.TrimRight(baseOrigin, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base origin: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	selector := rule.Selector
	if selector == "" {
		selector = DefaultSelector
	}
	keywords := lowerKeywords(rule.Keywords)

	links := model.NewLinkSet()
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || !matchesKeyword(href, keywords) {
			return
		}
		if link, ok := Normalize(base, href); ok {
			links.Add(link)
		}
	})
	return links, nil
}

// Normalize turns an anchor href into an absolute http(s) URL. Root-relative
// paths get the origin prepended verbatim; absolute URLs are returned unchanged.
func Normalize(base *url.URL, href string) (string, bool) {
	switch {
	case strings.HasPrefix(href, "#"):
		return "", false
	case strings.HasPrefix(href, "//"):
		return base.Scheme + ":" + href, true
	case strings.HasPrefix(href, "/"):
		return base.Scheme + "://" + base.Host + href, true
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		switch strings.ToLower(ref.Scheme) {
		case "http", "https":
			return href, true
		default:
			return "", false
		}
	}
	return base.ResolveReference(ref).String(), true
}

func lowerKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return []string{DefaultKeyword}
	}
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, strings.ToLower(k))
		}
	}
	return out
}

func matchesKeyword(href string, keywords []string) bool {
	lower := strings.ToLower(href)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
