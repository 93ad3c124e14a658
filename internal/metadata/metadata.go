// Package metadata loads the document metadata produced by the collector.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DeafMist/news-city-mapper/internal/models"
)

// Load reads a JSON array of document metadata records.
func Load(path string) ([]models.DocumentMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var docs []models.DocumentMetadata
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	return docs, nil
}
