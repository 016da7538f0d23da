// Package catalog is the category registry: the read-only view of enabled
// categories used by the controller, plus the category file that seeds them.
package catalog

import (
	"context"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"mercator-hq/janitor/pkg/cleanup"
)

// kindOrder is the display order of category kinds.
var kindOrder = map[cleanup.Kind]int{
	cleanup.KindDatabase: 0,
	cleanup.KindStorage:  1,
	cleanup.KindCache:    2,
}

// Registry lists categories from a store.
type Registry struct {
	store cleanup.Storage
	lang  language.Tag
}

// NewRegistry returns a registry reading from store. Titles are compared
// with English collation.
func NewRegistry(store cleanup.Storage) *Registry {
	return &Registry{store: store, lang: language.English}
}

// ListEnabled returns enabled categories ordered by kind, then title.
func (r *Registry) ListEnabled(ctx context.Context) ([]cleanup.Category, error) {
	all, err := r.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]cleanup.Category, 0, len(all))
	for _, c := range all {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}

	SortForDisplay(enabled, r.lang)
	return enabled, nil
}

// SortForDisplay orders categories by kind, then collated title, then ID.
// Unknown kinds sort last.
func SortForDisplay(cats []cleanup.Category, lang language.Tag) {
	col := collate.New(lang, collate.IgnoreCase)
	rank := func(k cleanup.Kind) int {
		if r, ok := kindOrder[k]; ok {
			return r
		}
		return len(kindOrder)
	}

	sort.SliceStable(cats, func(i, j int) bool {
		a, b := cats[i], cats[j]
		if ra, rb := rank(a.Kind), rank(b.Kind); ra != rb {
			return ra < rb
		}
		if c := col.CompareString(a.Title, b.Title); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}
