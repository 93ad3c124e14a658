package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/DeafMist/news-city-mapper/internal/models"
)

// FileSink writes the records as an indented JSON array.
type FileSink struct {
	Path string
}

// Name implements Sink.
func (s FileSink) Name() string { return "file" }

// Export creates the parent directory when needed and replaces the file.
func (s FileSink) Export(_ context.Context, snap Snapshot) error {
	records := snap.Records
	if records == nil {
		records = []models.CityNews{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

// ReadFile loads a snapshot written by FileSink.
func ReadFile(path string) ([]models.CityNews, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var records []models.CityNews
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return records, nil
}

// FileStore serves a snapshot file. It rereads the file when it changes.
type FileStore struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	records []models.CityNews
	byCity  map[string]int
}

// NewFileStore returns a store over the snapshot at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() ([]models.CityNews, map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if s.records != nil && info.ModTime().Equal(s.modTime) {
		return s.records, s.byCity, nil
	}

	records, err := ReadFile(s.path)
	if err != nil {
		return nil, nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		ui, uj := records[i].City == models.UnspecifiedLocation, records[j].City == models.UnspecifiedLocation
		if ui != uj {
			return uj
		}
		return records[i].City < records[j].City
	})
	byCity := make(map[string]int, len(records))
	for i, r := range records {
		byCity[r.City] = i
	}
	if records == nil {
		records = []models.CityNews{}
	}

	s.records, s.byCity, s.modTime = records, byCity, info.ModTime()
	return records, byCity, nil
}

// Health checks that the snapshot is readable.
func (s *FileStore) Health(context.Context) error {
	_, _, err := s.load()
	return err
}

// ListCities returns a page of city summaries.
func (s *FileStore) ListCities(_ context.Context, from, size int) (*models.CityPage, error) {
	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	if from < 0 {
		from = 0
	}
	if from > len(records) {
		from = len(records)
	}
	end := len(records)
	if size > 0 && from+size < end {
		end = from + size
	}

	items := make([]models.CitySummary, 0, end-from)
	for _, r := range records[from:end] {
		items = append(items, r.Summary())
	}
	return &models.CityPage{Total: int64(len(records)), Items: items}, nil
}

// GetCity returns the record of a city key.
func (s *FileStore) GetCity(_ context.Context, key string) (*models.CityNews, error) {
	records, byCity, err := s.load()
	if err != nil {
		return nil, err
	}
	i, ok := byCity[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCityNotFound, key)
	}
	rec := records[i]
	return &rec, nil
}
