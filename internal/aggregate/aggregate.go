// Package aggregate runs the classifier over a document set with a bounded
// worker pool and merges the results into one index.
package aggregate

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/news-city-mapper/internal/classifier"
	"github.com/DeafMist/news-city-mapper/internal/models"
)

// Classifier decides the attributions of one document.
type Classifier interface {
	Classify(meta models.DocumentMetadata) (classifier.Result, error)
}

// Stats summarises a run.
type Stats struct {
	Total        int
	Relevant     int
	Discarded    int
	Failed       int
	Attributions int
	Duration     time.Duration
}

// Aggregator drives a Classifier over documents.
type Aggregator struct {
	classifier Classifier
	workers    int
	log        *slog.Logger
}

// New returns an aggregator running at most workers documents at once.
// A non-positive count uses GOMAXPROCS workers.
func New(c Classifier, workers int, log *slog.Logger) *Aggregator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{classifier: c, workers: workers, log: log}
}

// Run classifies every document and returns the merged index. A document
// that fails is logged and skipped. Run only stops early when ctx is
// cancelled, in which case the partial index is returned with ctx's error.
func (a *Aggregator) Run(ctx context.Context, docs []models.DocumentMetadata) (*Index, Stats, error) {
	start := time.Now()
	index := NewIndex()

	var relevant, discarded, failed, attributions atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.classifier.Classify(doc)
			if err != nil {
				failed.Add(1)
				a.log.Warn("skip document", slog.String("file", doc.FilePath), slog.Any("err", err))
				return nil
			}
			if !res.Relevant {
				discarded.Add(1)
				return nil
			}
			relevant.Add(1)
			attributions.Add(int64(len(res.Attributions)))
			index.Merge(models.NewsItemFrom(doc), res.Attributions)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := Stats{
		Total:        len(docs),
		Relevant:     int(relevant.Load()),
		Discarded:    int(discarded.Load()),
		Failed:       int(failed.Load()),
		Attributions: int(attributions.Load()),
		Duration:     time.Since(start),
	}
	return index, stats, err
}
