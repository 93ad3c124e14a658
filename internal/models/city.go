package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Coordinates is a (lat, lon) pair. It is encoded as a two element array.
type Coordinates struct {
	Lat float64
	Lon float64
}

// MarshalJSON encodes the pair as [lat, lon].
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lon})
}

// UnmarshalJSON decodes a [lat, lon] array.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode coordinates: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("coordinates must have 2 values, got %d", len(raw))
	}
	c.Lat, c.Lon = raw[0], raw[1]
	return nil
}

// Location mirrors the gazetteer "loc" object.
type Location struct {
	Coordinates Coordinates `json:"coordinates"`
}

// City is a gazetteer entry.
type City struct {
	Name string   `json:"name"`
	Loc  Location `json:"loc"`
}

// Key is the lower-cased lookup key of the city.
func (c City) Key() string {
	return CityKey(c.Name)
}

// CityKey case-folds a city name into its lookup key.
func CityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
