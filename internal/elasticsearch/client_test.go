package elasticsearch_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-city-mapper/internal/elasticsearch"
	"github.com/DeafMist/news-city-mapper/internal/models"
)

type fakeCluster struct {
	mu       sync.Mutex
	exists   bool
	created  string
	bulk     []string
	deletes  []map[string]any
	searches []map[string]any
	docs     map[string]string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/cities":
		if f.exists {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && r.URL.Path == "/cities":
		f.created = string(body)
		f.exists = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		sc := bufio.NewScanner(strings.NewReader(string(body)))
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			f.bulk = append(f.bulk, sc.Text())
		}
		_, _ = io.WriteString(w, `{"errors":false,"items":[]}`)
	case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
		var q map[string]any
		_ = json.Unmarshal(body, &q)
		f.deletes = append(f.deletes, q)
		_, _ = io.WriteString(w, `{"deleted":2}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var q map[string]any
		_ = json.Unmarshal(body, &q)
		f.searches = append(f.searches, q)
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[
			{"_source":{"city":"gdansk","coordinates":[54.35,18.65],"news_count":3}},
			{"_source":{"city":"UNSPECIFIED_LOCATION","coordinates":null,"news_count":1}}]}}`)
	case strings.HasPrefix(r.URL.Path, "/cities/_doc/"):
		id := strings.TrimPrefix(r.URL.Path, "/cities/_doc/")
		doc, ok := f.docs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"found":false}`)
			return
		}
		_, _ = io.WriteString(w, `{"found":true,"_source":`+doc+`}`)
	default:
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{}`)
	}
}

func newClient(t *testing.T, f *fakeCluster) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := elasticsearch.New(srv.URL, "cities", nil)
	require.NoError(t, err)
	return c
}

func TestEnsureIndex(t *testing.T) {
	f := &fakeCluster{}
	c := newClient(t, f)

	require.NoError(t, c.EnsureIndex(context.Background()))
	require.Contains(t, f.created, `"snapshot_id": {"type": "keyword"}`)

	f.created = ""
	require.NoError(t, c.EnsureIndex(context.Background()))
	require.Empty(t, f.created)
}

func TestIndexSnapshot(t *testing.T) {
	f := &fakeCluster{}
	c := newClient(t, f)

	records := []models.CityNews{
		{City: "gdansk", Coordinates: &models.Coordinates{Lat: 54.35, Lon: 18.65}, News: []models.NewsItem{{Title: "a"}}},
		{City: models.UnspecifiedLocation, News: []models.NewsItem{{Title: "b"}, {Title: "c"}}},
	}
	require.NoError(t, c.IndexSnapshot(context.Background(), "snap-1", records))
	require.Len(t, f.bulk, 4)

	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(f.bulk[0]), &meta))
	require.Equal(t, elasticsearch.DocumentID("gdansk"), meta["index"]["_id"])

	var doc elasticsearch.CityDocument
	require.NoError(t, json.Unmarshal([]byte(f.bulk[3]), &doc))
	require.Equal(t, models.UnspecifiedLocation, doc.City)
	require.Equal(t, "snap-1", doc.SnapshotID)
	require.Equal(t, 2, doc.NewsCount)
	require.Equal(t, 1, doc.SortRank)
	require.Nil(t, doc.Coordinates)

	f.bulk = nil
	require.NoError(t, c.IndexSnapshot(context.Background(), "snap-2", nil))
	require.Empty(t, f.bulk)
}

func TestDeleteStale(t *testing.T) {
	f := &fakeCluster{}
	c := newClient(t, f)

	deleted, err := c.DeleteStale(context.Background(), "snap-1", 500)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)
	require.Len(t, f.deletes, 1)

	raw, err := json.Marshal(f.deletes[0])
	require.NoError(t, err)
	require.Contains(t, string(raw), `"must_not":[{"term":{"snapshot_id":"snap-1"}}]`)
}

func TestListCities(t *testing.T) {
	f := &fakeCluster{}
	c := newClient(t, f)

	page, err := c.ListCities(context.Background(), -5, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Equal(t, []models.CitySummary{
		{City: "gdansk", Coordinates: &models.Coordinates{Lat: 54.35, Lon: 18.65}, NewsCount: 3},
		{City: models.UnspecifiedLocation, NewsCount: 1},
	}, page.Items)

	require.Len(t, f.searches, 1)
	require.EqualValues(t, 0, f.searches[0]["from"])
	require.EqualValues(t, 200, f.searches[0]["size"])
}

func TestGetCity(t *testing.T) {
	f := &fakeCluster{docs: map[string]string{
		elasticsearch.DocumentID("warsaw"): `{"city":"warsaw","coordinates":[52.23,21.01],"news_count":1,"news":[{"title":"Warsaw economy grows","link":"https://example.com","filepath":"a.html","collection_date":"2024-05-01"}],"snapshot_id":"snap-1"}`,
	}}
	c := newClient(t, f)

	rec, err := c.GetCity(context.Background(), "warsaw")
	require.NoError(t, err)
	require.Equal(t, "warsaw", rec.City)
	require.Equal(t, &models.Coordinates{Lat: 52.23, Lon: 21.01}, rec.Coordinates)
	require.Len(t, rec.News, 1)
	require.Equal(t, "https://example.com", rec.News[0].Link)

	_, err = c.GetCity(context.Background(), "atlantis")
	require.True(t, errors.Is(err, models.ErrCityNotFound))
}
