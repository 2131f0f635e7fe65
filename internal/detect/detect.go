package detect

import "pokewatch/internal/model"

// Diff returns the links in fresh that are not in seen, and the union of both.
// Neither input is modified.
func Diff(fresh, seen model.LinkSet) (added, merged model.LinkSet) {
	added = model.NewLinkSet()
	merged = seen.Clone()
	for link := range fresh {
		if !seen.Has(link) {
			added.Add(link)
		}
		merged.Add(link)
	}
	return added, merged
}
