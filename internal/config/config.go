package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DeafMist/news-city-mapper/internal/classifier"
)

// Sink names accepted in Mapper.Sinks.
const (
	SinkFile          = "file"
	SinkElasticsearch = "elasticsearch"
	SinkKafka         = "kafka"
)

// API snapshot sources.
const (
	SourceFile          = "file"
	SourceElasticsearch = "elasticsearch"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string `yaml:"elasticsearch_addr"`
	ElasticsearchIndex string `yaml:"elasticsearch_index"`
}

// Mapper holds configuration for the mapping run.
type Mapper struct {
	Common             `yaml:",inline"`
	CitiesPath         string        `yaml:"cities_path"`
	MetadataPath       string        `yaml:"metadata_path"`
	OutputPath         string        `yaml:"output_path"`
	TitleThreshold     float64       `yaml:"title_threshold"`
	ContentThreshold   float64       `yaml:"content_threshold"`
	ProximityThreshold int           `yaml:"proximity_threshold"`
	ParseContent       bool          `yaml:"parse_content"`
	RelaxedLinks       bool          `yaml:"relaxed_links"`
	Policy             string        `yaml:"policy"`
	Workers            int           `yaml:"workers"`
	Sinks              []string      `yaml:"sinks"`
	PruneBatch         int           `yaml:"prune_batch"`
	ExportTimeout      time.Duration `yaml:"export_timeout"`
	KafkaBrokers       []string      `yaml:"kafka_brokers"`
	KafkaTopic         string        `yaml:"kafka_topic"`
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr     string
	Source       string
	SnapshotPath string
	DefaultPage  int
	MaxPage      int
}

// LoadMapper builds a Mapper config from defaults, an optional YAML file and
// environment variables, in that order. An empty path falls back to
// MAPPER_CONFIG. The result is not validated; callers apply their own
// overrides first and then call Validate.
func LoadMapper(path string) (*Mapper, error) {
	c := &Mapper{
		Common: Common{
			ElasticsearchAddr:  "http://elasticsearch:9200",
			ElasticsearchIndex: "cities",
		},
		CitiesPath:         "data/cities/cities-poland.json",
		MetadataPath:       "data/output/metadata.json",
		OutputPath:         "data/mapped/news_by_city.json",
		TitleThreshold:     0.95,
		ContentThreshold:   0.95,
		ProximityThreshold: 3,
		RelaxedLinks:       true,
		Policy:             string(classifier.PolicyShortCircuit),
		Workers:            runtime.GOMAXPROCS(0),
		Sinks:              []string{SinkFile},
		PruneBatch:         1000,
		ExportTimeout:      time.Minute,
		KafkaBrokers:       []string{"kafka:9092"},
		KafkaTopic:         "news_by_city",
	}

	if path == "" {
		path = getEnv("MAPPER_CONFIG", "")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	c.ElasticsearchAddr = getEnv("ELASTICSEARCH_ADDR", c.ElasticsearchAddr)
	c.ElasticsearchIndex = getEnv("ELASTICSEARCH_INDEX", c.ElasticsearchIndex)
	c.CitiesPath = getEnv("MAPPER_CITIES_PATH", c.CitiesPath)
	c.MetadataPath = getEnv("MAPPER_METADATA_PATH", c.MetadataPath)
	c.OutputPath = getEnv("MAPPER_OUTPUT_PATH", c.OutputPath)
	c.TitleThreshold = getFloat("MAPPER_TITLE_THRESHOLD", c.TitleThreshold)
	c.ContentThreshold = getFloat("MAPPER_CONTENT_THRESHOLD", c.ContentThreshold)
	c.ProximityThreshold = getInt("MAPPER_PROXIMITY_THRESHOLD", c.ProximityThreshold)
	c.ParseContent = getBool("MAPPER_PARSE_CONTENT", c.ParseContent)
	c.RelaxedLinks = getBool("MAPPER_RELAXED_LINKS", c.RelaxedLinks)
	c.Policy = getEnv("MAPPER_POLICY", c.Policy)
	c.Workers = getInt("MAPPER_WORKERS", c.Workers)
	c.Sinks = getList("MAPPER_SINKS", c.Sinks)
	c.PruneBatch = getInt("ELASTICSEARCH_PRUNE_BATCH", c.PruneBatch)
	c.ExportTimeout = getDuration("MAPPER_EXPORT_TIMEOUT", c.ExportTimeout.String())
	c.KafkaBrokers = getList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)

	return c, nil
}

// Validate checks the final values, whichever layer set them.
func (c *Mapper) Validate() error {
	if c.TitleThreshold < 0 || c.TitleThreshold > 1 {
		return fmt.Errorf("title threshold must be within [0,1], got %v", c.TitleThreshold)
	}
	if c.ContentThreshold < 0 || c.ContentThreshold > 1 {
		return fmt.Errorf("content threshold must be within [0,1], got %v", c.ContentThreshold)
	}
	if c.ProximityThreshold < 0 {
		return fmt.Errorf("proximity threshold cannot be negative, got %d", c.ProximityThreshold)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if _, err := classifier.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.CitiesPath == "" || c.MetadataPath == "" {
		return errors.New("cities and metadata paths are required")
	}
	if c.ExportTimeout <= 0 {
		return fmt.Errorf("export timeout must be positive")
	}

	if len(c.Sinks) == 0 {
		return fmt.Errorf("at least one sink is required")
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkFile:
			if c.OutputPath == "" {
				return fmt.Errorf("output path is required for the file sink")
			}
		case SinkElasticsearch:
			if c.ElasticsearchAddr == "" || c.ElasticsearchIndex == "" {
				return fmt.Errorf("ELASTICSEARCH_ADDR and ELASTICSEARCH_INDEX are required for the elasticsearch sink")
			}
			if c.PruneBatch <= 0 {
				return fmt.Errorf("ELASTICSEARCH_PRUNE_BATCH must be positive")
			}
		case SinkKafka:
			if len(c.KafkaBrokers) == 0 {
				return fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
			}
			if c.KafkaTopic == "" {
				return fmt.Errorf("KAFKA_TOPIC is required for the kafka sink")
			}
		default:
			return fmt.Errorf("unknown sink %q", s)
		}
	}
	return nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Mapper) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "cities"),
		},
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		Source:       getEnv("API_SOURCE", SourceFile),
		SnapshotPath: getEnv("API_SNAPSHOT_PATH", "data/mapped/news_by_city.json"),
		DefaultPage:  getInt("API_PAGE_SIZE", 20),
		MaxPage:      getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.Source != SourceFile && c.Source != SourceElasticsearch {
		return nil, fmt.Errorf("API_SOURCE must be %q or %q", SourceFile, SourceElasticsearch)
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func getList(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return splitAndTrim(v)
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
