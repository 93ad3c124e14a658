package elasticsearch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/news-city-mapper/internal/models"
)

// Client wraps go-elasticsearch with helpers for city snapshots.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// CityDocument is the stored form of one snapshot record.
type CityDocument struct {
	City        string              `json:"city"`
	Coordinates *models.Coordinates `json:"coordinates"`
	NewsCount   int                 `json:"news_count"`
	News        []models.NewsItem   `json:"news"`
	SnapshotID  string              `json:"snapshot_id"`
	// SortRank puts the unspecified location after every city.
	SortRank  int       `json:"sort_rank"`
	IndexedAt time.Time `json:"indexed_at"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "city":        {"type": "keyword"},
      "coordinates": {"type": "float"},
      "news_count":  {"type": "integer"},
      "news":        {"type": "object", "enabled": false},
      "snapshot_id": {"type": "keyword"},
      "sort_rank":   {"type": "byte"},
      "indexed_at":  {"type": "date"}
    }
  }
}`

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// DocumentID derives a stable document id from a city key.
func DocumentID(cityKey string) string {
	s := sha1.Sum([]byte(cityKey))
	return hex.EncodeToString(s[:])
}

// NewCityDocument converts a snapshot record into its stored form.
func NewCityDocument(rec models.CityNews, snapshotID string, at time.Time) CityDocument {
	rank := 0
	if rec.City == models.UnspecifiedLocation {
		rank = 1
	}
	return CityDocument{
		City:        rec.City,
		Coordinates: rec.Coordinates,
		NewsCount:   len(rec.News),
		News:        rec.News,
		SnapshotID:  snapshotID,
		SortRank:    rank,
		IndexedAt:   at.UTC(),
	}
}

// Record returns the snapshot record held by the document.
func (d CityDocument) Record() models.CityNews {
	return models.CityNews{City: d.City, Coordinates: d.Coordinates, News: d.News}
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index failed: %s", res.Status())
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		if strings.Contains(string(data), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(data)))
	}

	c.log.Info("index created", slog.String("index", c.index))
	return nil
}

// IndexSnapshot bulk-writes one document per record.
func (c *Client) IndexSnapshot(ctx context.Context, snapshotID string, records []models.CityNews) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		meta := map[string]any{"index": map[string]any{"_id": DocumentID(rec.City)}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("marshal bulk meta: %w", err)
		}
		if err := enc.Encode(NewCityDocument(rec, snapshotID, now)); err != nil {
			return fmt.Errorf("marshal doc: %w", err)
		}
	}

	req := esapi.BulkRequest{
		Index:   c.index,
		Body:    &buf,
		Refresh: "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk index failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}

	if parsed.Errors {
		failed := 0
		var first string
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Status >= http.StatusBadRequest {
					failed++
					if first == "" {
						first = result.Error.Type + ": " + result.Error.Reason
					}
				}
			}
		}
		return fmt.Errorf("bulk index: %d of %d documents failed, first: %s", failed, len(records), first)
	}

	c.log.Debug("snapshot indexed", slog.String("snapshot_id", snapshotID), slog.Int("documents", len(records)))
	return nil
}

// DeleteStale removes documents that do not belong to snapshotID using
// batched delete-by-query. It loops until a batch deletes fewer documents
// than batchSize.
func (c *Client) DeleteStale(ctx context.Context, snapshotID string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"bool": map[string]any{
					"must_not": []map[string]any{
						{"term": map[string]any{"snapshot_id": snapshotID}},
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// ListCities returns a page of city summaries ordered by city, with the
// unspecified location last.
func (c *Client) ListCities(ctx context.Context, from, size int) (*models.CityPage, error) {
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	if from < 0 {
		from = 0
	}

	body := map[string]any{
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"query":            map[string]any{"match_all": map[string]any{}},
		"sort": []map[string]any{
			{"sort_rank": map[string]any{"order": "asc"}},
			{"city": map[string]any{"order": "asc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithSourceExcludes("news"),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source CityDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.CitySummary, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, models.CitySummary{
			City:        hit.Source.City,
			Coordinates: hit.Source.Coordinates,
			NewsCount:   hit.Source.NewsCount,
		})
	}

	return &models.CityPage{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

// GetCity fetches the full record of a city key.
func (c *Client) GetCity(ctx context.Context, key string) (*models.CityNews, error) {
	res, err := c.es.Get(c.index, DocumentID(key), c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get city: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", models.ErrCityNotFound, key)
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("get city failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Found  bool         `json:"found"`
		Source CityDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !parsed.Found {
		return nil, fmt.Errorf("%w: %s", models.ErrCityNotFound, key)
	}

	rec := parsed.Source.Record()
	return &rec, nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
