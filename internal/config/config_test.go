package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/DeafMist/news-city-mapper/internal/config"
	"github.com/stretchr/testify/require"
)

var mapperEnv = []string{
	"MAPPER_CONFIG", "ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX", "MAPPER_CITIES_PATH", "MAPPER_METADATA_PATH",
	"MAPPER_OUTPUT_PATH", "MAPPER_TITLE_THRESHOLD", "MAPPER_CONTENT_THRESHOLD", "MAPPER_PROXIMITY_THRESHOLD",
	"MAPPER_PARSE_CONTENT", "MAPPER_RELAXED_LINKS", "MAPPER_POLICY", "MAPPER_WORKERS", "MAPPER_SINKS",
	"ELASTICSEARCH_PRUNE_BATCH", "MAPPER_EXPORT_TIMEOUT", "KAFKA_BROKERS", "KAFKA_TOPIC",
}

func clearMapperEnv(t *testing.T) {
	t.Helper()
	for _, key := range mapperEnv {
		t.Setenv(key, "")
	}
}

func TestLoadMapperDefaults(t *testing.T) {
	clearMapperEnv(t)

	cfg, err := config.LoadMapper("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "data/cities/cities-poland.json", cfg.CitiesPath)
	require.Equal(t, "data/output/metadata.json", cfg.MetadataPath)
	require.Equal(t, "data/mapped/news_by_city.json", cfg.OutputPath)
	require.Equal(t, 0.95, cfg.TitleThreshold)
	require.Equal(t, 0.95, cfg.ContentThreshold)
	require.Equal(t, 3, cfg.ProximityThreshold)
	require.False(t, cfg.ParseContent)
	require.True(t, cfg.RelaxedLinks)
	require.Equal(t, "short-circuit", cfg.Policy)
	require.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	require.Equal(t, []string{config.SinkFile}, cfg.Sinks)
	require.True(t, cfg.HasSink(config.SinkFile))
	require.False(t, cfg.HasSink(config.SinkKafka))
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "cities", cfg.ElasticsearchIndex)
	require.Equal(t, time.Minute, cfg.ExportTimeout)
}

func TestLoadMapperOverrides(t *testing.T) {
	clearMapperEnv(t)
	t.Setenv("MAPPER_CITIES_PATH", "/in/cities.json")
	t.Setenv("MAPPER_TITLE_THRESHOLD", "0.9")
	t.Setenv("MAPPER_PROXIMITY_THRESHOLD", "5")
	t.Setenv("MAPPER_PARSE_CONTENT", "true")
	t.Setenv("MAPPER_RELAXED_LINKS", "false")
	t.Setenv("MAPPER_POLICY", "scan-all")
	t.Setenv("MAPPER_WORKERS", "3")
	t.Setenv("MAPPER_SINKS", "file, kafka")
	t.Setenv("MAPPER_EXPORT_TIMEOUT", "45s")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom_topic")

	cfg, err := config.LoadMapper("")
	require.NoError(t, err)

	require.Equal(t, "/in/cities.json", cfg.CitiesPath)
	require.Equal(t, 0.9, cfg.TitleThreshold)
	require.Equal(t, 5, cfg.ProximityThreshold)
	require.True(t, cfg.ParseContent)
	require.False(t, cfg.RelaxedLinks)
	require.Equal(t, "scan-all", cfg.Policy)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, []string{"file", "kafka"}, cfg.Sinks)
	require.Equal(t, 45*time.Second, cfg.ExportTimeout)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
}

func TestLoadMapperFile(t *testing.T) {
	clearMapperEnv(t)
	path := filepath.Join(t.TempDir(), "mapper.yaml")
	data := `
cities_path: /etc/mapper/cities.json
content_threshold: 0.85
parse_content: true
sinks: [file, elasticsearch]
elasticsearch_index: snapshots
export_timeout: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("MAPPER_CONFIG", path)
	t.Setenv("MAPPER_CONTENT_THRESHOLD", "0.8")

	cfg, err := config.LoadMapper("")
	require.NoError(t, err)

	require.Equal(t, "/etc/mapper/cities.json", cfg.CitiesPath)
	require.Equal(t, 0.8, cfg.ContentThreshold)
	require.True(t, cfg.ParseContent)
	require.Equal(t, []string{"file", "elasticsearch"}, cfg.Sinks)
	require.Equal(t, "snapshots", cfg.ElasticsearchIndex)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, 2*time.Minute, cfg.ExportTimeout)
	require.Equal(t, 0.95, cfg.TitleThreshold)
}

func TestLoadMapperFileErrors(t *testing.T) {
	clearMapperEnv(t)

	_, err := config.LoadMapper(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workers: [1, 2"), 0o644))
	_, err = config.LoadMapper(bad)
	require.Error(t, err)
}

func TestLoadMapperValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "title threshold above one", env: map[string]string{"MAPPER_TITLE_THRESHOLD": "1.5"}},
		{name: "negative content threshold", env: map[string]string{"MAPPER_CONTENT_THRESHOLD": "-0.1"}},
		{name: "negative proximity", env: map[string]string{"MAPPER_PROXIMITY_THRESHOLD": "-1"}},
		{name: "zero workers", env: map[string]string{"MAPPER_WORKERS": "0"}},
		{name: "unknown policy", env: map[string]string{"MAPPER_POLICY": "greedy"}},
		{name: "unknown sink", env: map[string]string{"MAPPER_SINKS": "s3"}},
		{name: "empty sink list", env: map[string]string{"MAPPER_SINKS": " , "}},
		{name: "zero prune batch", env: map[string]string{"MAPPER_SINKS": "elasticsearch", "ELASTICSEARCH_PRUNE_BATCH": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearMapperEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.LoadMapper("")
			require.NoError(t, err)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMapperDefersValidation(t *testing.T) {
	clearMapperEnv(t)
	t.Setenv("MAPPER_WORKERS", "0")

	cfg, err := config.LoadMapper("")
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Workers)
	require.ErrorContains(t, cfg.Validate(), "workers")

	cfg.Workers = 4
	require.NoError(t, cfg.Validate())
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("API_SOURCE", "elasticsearch")
	t.Setenv("API_SNAPSHOT_PATH", "/data/out.json")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, config.SourceElasticsearch, cfg.Source)
	require.Equal(t, "/data/out.json", cfg.SnapshotPath)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadAPIValidation(t *testing.T) {
	t.Setenv("API_SOURCE", "")
	t.Setenv("API_PAGE_SIZE", "50")
	t.Setenv("API_MAX_PAGE_SIZE", "10")
	_, err := config.LoadAPI()
	require.Error(t, err)

	t.Setenv("API_PAGE_SIZE", "")
	t.Setenv("API_MAX_PAGE_SIZE", "")
	t.Setenv("API_SOURCE", "s3")
	_, err = config.LoadAPI()
	require.Error(t, err)
}
