// Package export delivers a city snapshot to its destinations.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DeafMist/news-city-mapper/internal/models"
)

// Snapshot is the outcome of one mapping run.
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Keywords  []string
	Records   []models.CityNews
}

// Sink receives a finished snapshot.
type Sink interface {
	Name() string
	Export(ctx context.Context, snap Snapshot) error
}

// Multi fans a snapshot out to several sinks. Every sink is attempted; the
// failures are joined.
type Multi []Sink

// Name lists the member sinks.
func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, s := range m {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}

// Export delivers snap to every sink in order.
func (m Multi) Export(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
