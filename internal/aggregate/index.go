package aggregate

import (
	"sort"
	"sync"

	"github.com/DeafMist/news-city-mapper/internal/models"
)

// CoordinateLookup resolves a city key to its coordinates.
type CoordinateLookup interface {
	Coordinates(key string) (models.Coordinates, bool)
}

// Index maps attributions to the news filed under them. It is safe for
// concurrent use.
type Index struct {
	mu    sync.Mutex
	items map[models.Attribution][]models.NewsItem
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{items: make(map[models.Attribution][]models.NewsItem)}
}

// Merge files item under every attribution.
func (i *Index) Merge(item models.NewsItem, attributions []models.Attribution) {
	if len(attributions) == 0 {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, a := range attributions {
		i.items[a] = append(i.items[a], item)
	}
}

// Len returns the number of distinct attributions.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}

// News returns a copy of the items filed under a.
func (i *Index) News(a models.Attribution) []models.NewsItem {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]models.NewsItem(nil), i.items[a]...)
}

// Records converts the index into output records sorted by city key, with
// the unspecified location last. Coordinates come from lookup.
func (i *Index) Records(lookup CoordinateLookup) []models.CityNews {
	i.mu.Lock()
	defer i.mu.Unlock()

	keys := make([]models.Attribution, 0, len(i.items))
	for a := range i.items {
		keys = append(keys, a)
	}
	sort.Slice(keys, func(x, y int) bool {
		if keys[x].IsUnspecified() != keys[y].IsUnspecified() {
			return keys[y].IsUnspecified()
		}
		return keys[x].Key() < keys[y].Key()
	})

	out := make([]models.CityNews, 0, len(keys))
	for _, a := range keys {
		rec := models.CityNews{
			City: a.Key(),
			News: append([]models.NewsItem(nil), i.items[a]...),
		}
		if !a.IsUnspecified() && lookup != nil {
			if c, ok := lookup.Coordinates(a.City()); ok {
				rec.Coordinates = &c
			}
		}
		out = append(out, rec)
	}
	return out
}
