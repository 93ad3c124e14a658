package aggregate_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-city-mapper/internal/aggregate"
	"github.com/DeafMist/news-city-mapper/internal/classifier"
	"github.com/DeafMist/news-city-mapper/internal/gazetteer"
	"github.com/DeafMist/news-city-mapper/internal/models"
	"github.com/DeafMist/news-city-mapper/internal/processing"
)

func testGazetteer() *gazetteer.Gazetteer {
	return gazetteer.New([]models.City{
		{Name: "Warsaw", Loc: models.Location{Coordinates: models.Coordinates{Lat: 52.23, Lon: 21.01}}},
		{Name: "Gdansk", Loc: models.Location{Coordinates: models.Coordinates{Lat: 54.35, Lon: 18.65}}},
		{Name: "Krakow", Loc: models.Location{Coordinates: models.Coordinates{Lat: 50.06, Lon: 19.94}}},
	})
}

func writeCorpus(t *testing.T, n int) []models.DocumentMetadata {
	t.Helper()
	dir := t.TempDir()

	titles := []string{"Warsaw economy grows", "Local growth today", "Weekly digest", "Krakow and Gdansk growth", "Sports results"}
	contents := []string{
		"Growth reported near Gdansk this year.",
		"Nothing to see here.",
		"<p>Krakow saw growth today.</p>",
		"Growth everywhere.",
		"Results of the weekend matches.",
	}

	docs := make([]models.DocumentMetadata, 0, n)
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("doc-%03d.html", i))
		require.NoError(t, os.WriteFile(path, []byte(contents[i%len(contents)]), 0o644))
		docs = append(docs, models.DocumentMetadata{
			FilePath:       path,
			Title:          titles[i%len(titles)],
			URL:            fmt.Sprintf("https://example.com/%d", i),
			CollectionDate: "2024-05-01",
		})
	}
	return docs
}

func newClassifier(gaz *gazetteer.Gazetteer) *classifier.Classifier {
	opts := classifier.DefaultOptions()
	opts.ParseContent = true
	return classifier.New(gaz, processing.NewKeywordSet("growth", "grows"), opts)
}

func normalized(records []models.CityNews) map[string][]string {
	out := make(map[string][]string, len(records))
	for _, r := range records {
		files := make([]string, 0, len(r.News))
		for _, n := range r.News {
			files = append(files, n.FilePath)
		}
		sort.Strings(files)
		out[r.City] = files
	}
	return out
}

func TestRunConcurrencyDoesNotChangeResult(t *testing.T) {
	gaz := testGazetteer()
	docs := writeCorpus(t, 60)
	c := newClassifier(gaz)

	seqIndex, seqStats, err := aggregate.New(c, 1, nil).Run(context.Background(), docs)
	require.NoError(t, err)

	for _, workers := range []int{2, 8, 0} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			index, stats, err := aggregate.New(c, workers, nil).Run(context.Background(), docs)
			require.NoError(t, err)
			require.Equal(t, normalized(seqIndex.Records(gaz)), normalized(index.Records(gaz)))
			require.Equal(t, seqStats.Relevant, stats.Relevant)
			require.Equal(t, seqStats.Attributions, stats.Attributions)
		})
	}

	require.Equal(t, 60, seqStats.Total)
	require.Equal(t, seqStats.Total, seqStats.Relevant+seqStats.Discarded+seqStats.Failed)
	require.Zero(t, seqStats.Failed)
}

func TestRunSkipsMissingFiles(t *testing.T) {
	gaz := testGazetteer()
	docs := writeCorpus(t, 5)
	c := newClassifier(gaz)

	want, _, err := aggregate.New(c, 4, nil).Run(context.Background(), docs)
	require.NoError(t, err)

	withMissing := append([]models.DocumentMetadata{{
		FilePath: filepath.Join(t.TempDir(), "gone.html"),
		Title:    "Warsaw economy grows",
	}}, docs...)
	got, stats, err := aggregate.New(c, 4, nil).Run(context.Background(), withMissing)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, normalized(want.Records(gaz)), normalized(got.Records(gaz)))
}

func TestRunExpectedAttributions(t *testing.T) {
	gaz := testGazetteer()
	docs := writeCorpus(t, 5)

	index, stats, err := aggregate.New(newClassifier(gaz), 3, nil).Run(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Relevant)
	require.Equal(t, 1, stats.Discarded)

	got := normalized(index.Records(gaz))
	require.Equal(t, map[string][]string{
		"gdansk":                   {docs[3].FilePath},
		"krakow":                   {docs[2].FilePath, docs[3].FilePath},
		"warsaw":                   {docs[0].FilePath},
		models.UnspecifiedLocation: {docs[1].FilePath},
	}, got)
}

func TestRunCancelled(t *testing.T) {
	gaz := testGazetteer()
	docs := writeCorpus(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := aggregate.New(newClassifier(gaz), 2, nil).Run(ctx, docs)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestIndexRecords(t *testing.T) {
	gaz := testGazetteer()
	index := aggregate.NewIndex()

	a := models.NewsItem{Title: "a", FilePath: "a.html"}
	b := models.NewsItem{Title: "b", FilePath: "b.html"}
	index.Merge(a, []models.Attribution{models.Unspecified})
	index.Merge(a, []models.Attribution{models.CityAttribution("warsaw"), models.CityAttribution("atlantis")})
	index.Merge(b, []models.Attribution{models.CityAttribution("gdansk")})
	index.Merge(b, nil)

	require.Equal(t, 4, index.Len())
	require.Equal(t, []models.NewsItem{a}, index.News(models.CityAttribution("warsaw")))

	records := index.Records(gaz)
	cities := make([]string, 0, len(records))
	for _, r := range records {
		cities = append(cities, r.City)
	}
	require.Equal(t, []string{"atlantis", "gdansk", "warsaw", models.UnspecifiedLocation}, cities)

	require.Nil(t, records[0].Coordinates)
	require.Equal(t, &models.Coordinates{Lat: 54.35, Lon: 18.65}, records[1].Coordinates)
	require.Nil(t, records[3].Coordinates)
}
