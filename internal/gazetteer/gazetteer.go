// Package gazetteer holds the read-only set of known cities.
package gazetteer

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/DeafMist/news-city-mapper/internal/models"
	"github.com/DeafMist/news-city-mapper/internal/processing"
)

// City is a gazetteer entry prepared for matching.
type City struct {
	Name string
	// Key is the lower-cased name used as the index key.
	Key string
	// MatchName is the tokenized name compared against document tokens.
	MatchName   string
	Coordinates models.Coordinates
}

// Gazetteer indexes cities by key. It is safe for concurrent reads.
type Gazetteer struct {
	byKey      map[string]City
	cities     []City
	duplicates int
}

// New builds a gazetteer. Later entries win when two names share a key.
func New(entries []models.City) *Gazetteer {
	g := &Gazetteer{byKey: make(map[string]City, len(entries))}
	for _, e := range entries {
		key := e.Key()
		if key == "" {
			continue
		}
		if _, ok := g.byKey[key]; ok {
			g.duplicates++
		}
		g.byKey[key] = City{
			Name:        e.Name,
			Key:         key,
			MatchName:   strings.Join(processing.Tokenize(key), " "),
			Coordinates: e.Loc.Coordinates,
		}
	}

	g.cities = make([]City, 0, len(g.byKey))
	for _, c := range g.byKey {
		if c.MatchName == "" {
			continue
		}
		g.cities = append(g.cities, c)
	}
	sort.Slice(g.cities, func(i, j int) bool { return g.cities[i].Key < g.cities[j].Key })
	return g
}

// Load reads a JSON array of cities.
func Load(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	var entries []models.City
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode gazetteer %s: %w", path, err)
	}
	return New(entries), nil
}

// Lookup returns the city stored under key.
func (g *Gazetteer) Lookup(key string) (City, bool) {
	c, ok := g.byKey[key]
	return c, ok
}

// Coordinates returns the coordinates of the city stored under key.
func (g *Gazetteer) Coordinates(key string) (models.Coordinates, bool) {
	c, ok := g.byKey[key]
	return c.Coordinates, ok
}

// Cities returns the matchable cities ordered by key.
func (g *Gazetteer) Cities() []City {
	return g.cities
}

// Len is the number of distinct keys.
func (g *Gazetteer) Len() int {
	return len(g.byKey)
}

// Duplicates is the number of entries overridden by a later entry with the same key.
func (g *Gazetteer) Duplicates() int {
	return g.duplicates
}
