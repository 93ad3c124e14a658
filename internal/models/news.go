package models

import "errors"

// ErrCityNotFound is returned by stores when a city key has no news.
var ErrCityNotFound = errors.New("city not found")

// DocumentMetadata describes one collected document on disk.
type DocumentMetadata struct {
	FilePath       string `json:"filepath"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	CollectionDate string `json:"collection_date"`
}

// NewsItem is the projection of a document attached to a city.
type NewsItem struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	FilePath       string `json:"filepath"`
	CollectionDate string `json:"collection_date"`
}

// NewsItemFrom projects metadata into a NewsItem.
func NewsItemFrom(meta DocumentMetadata) NewsItem {
	return NewsItem{
		Title:          meta.Title,
		Link:           meta.URL,
		FilePath:       meta.FilePath,
		CollectionDate: meta.CollectionDate,
	}
}

// CityNews is one record of the output snapshot.
type CityNews struct {
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates"`
	News        []NewsItem   `json:"news"`
}

// CitySummary is the list view of a CityNews record.
type CitySummary struct {
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates"`
	NewsCount   int          `json:"news_count"`
}

// CityPage bundles a page of summaries and the total count.
type CityPage struct {
	Total int64         `json:"total"`
	Items []CitySummary `json:"items"`
}

// Summary returns the list view of the record.
func (c CityNews) Summary() CitySummary {
	return CitySummary{City: c.City, Coordinates: c.Coordinates, NewsCount: len(c.News)}
}
