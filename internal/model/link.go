package model

import "sort"

// ProductLink is a normalized absolute product page URL.
type ProductLink = string

// LinkSet is a set of product links compared by exact string equality.
type LinkSet map[ProductLink]struct{}

func NewLinkSet(links ...ProductLink) LinkSet {
	set := make(LinkSet, len(links))
	for _, link := range links {
		set.Add(link)
	}
	return set
}

func (s LinkSet) Add(link ProductLink) {
	s[link] = struct{}{}
}

func (s LinkSet) Has(link ProductLink) bool {
	_, ok := s[link]
	return ok
}

func (s LinkSet) Len() int {
	return len(s)
}

// Sorted returns the links in lexical order so that batches and logs are stable.
func (s LinkSet) Sorted() []ProductLink {
	out := make([]ProductLink, 0, len(s))
	for link := range s {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}

func (s LinkSet) Clone() LinkSet {
	out := make(LinkSet, len(s))
	for link := range s {
		out[link] = struct{}{}
	}
	return out
}

func (s LinkSet) Equal(other LinkSet) bool {
	if len(s) != len(other) {
		return false
	}
	for link := range s {
		if !other.Has(link) {
			return false
		}
	}
	return true
}
