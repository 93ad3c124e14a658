package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DeafMist/news-city-mapper/internal/models"
)

type snapshotIndexer interface {
	EnsureIndex(ctx context.Context) error
	IndexSnapshot(ctx context.Context, snapshotID string, records []models.CityNews) error
	DeleteStale(ctx context.Context, snapshotID string, batchSize int) (int64, error)
}

// ElasticsearchSink stores one document per city and prunes the documents
// of earlier snapshots, so the index always holds the latest run.
type ElasticsearchSink struct {
	client    snapshotIndexer
	batchSize int
	log       *slog.Logger
}

// NewElasticsearchSink wraps an Elasticsearch client.
func NewElasticsearchSink(client snapshotIndexer, batchSize int, log *slog.Logger) *ElasticsearchSink {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ElasticsearchSink{client: client, batchSize: batchSize, log: log}
}

// Name implements Sink.
func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

// Export indexes the snapshot, then removes stale documents.
func (s *ElasticsearchSink) Export(ctx context.Context, snap Snapshot) error {
	if err := s.client.EnsureIndex(ctx); err != nil {
		return err
	}
	if err := s.client.IndexSnapshot(ctx, snap.ID, snap.Records); err != nil {
		return err
	}

	deleted, err := s.client.DeleteStale(ctx, snap.ID, s.batchSize)
	if err != nil {
		return fmt.Errorf("prune stale cities: %w", err)
	}

	s.log.Info("snapshot indexed",
		slog.String("snapshot_id", snap.ID),
		slog.Int("cities", len(snap.Records)),
		slog.Int64("pruned", deleted),
	)
	return nil
}
