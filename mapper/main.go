package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/DeafMist/news-city-mapper/internal/aggregate"
	"github.com/DeafMist/news-city-mapper/internal/classifier"
	"github.com/DeafMist/news-city-mapper/internal/config"
	"github.com/DeafMist/news-city-mapper/internal/elasticsearch"
	"github.com/DeafMist/news-city-mapper/internal/export"
	"github.com/DeafMist/news-city-mapper/internal/gazetteer"
	"github.com/DeafMist/news-city-mapper/internal/logger"
	"github.com/DeafMist/news-city-mapper/internal/metadata"
	"github.com/DeafMist/news-city-mapper/internal/processing"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	configPath         string
	citiesPath         string
	metadataPath       string
	outputPath         string
	parseContent       bool
	strictLinks        bool
	policy             string
	workers            int
	sinks              []string
	titleThreshold     float64
	contentThreshold   float64
	proximityThreshold int
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "mapper [flags] keyword [keyword...]",
		Short: "Map collected news documents to the cities they report on",
		Long: `mapper reads the collected document metadata, keeps the documents that mention
one of the keywords and files each of them under the cities it is about.
A document with a keyword but no recognisable city is filed under UNSPECIFIED_LOCATION.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadMapper(f.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			f.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			runID := uuid.NewString()
			log := logger.New("mapper").With(slog.String("run_id", runID))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if err := run(ctx, runID, cfg, args, log, cmd.OutOrStdout()); err != nil {
				log.Error("mapping failed", slog.Any("err", err))
				return err
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to a YAML config file (default $MAPPER_CONFIG)")
	fs.StringVar(&f.citiesPath, "cities", "", "path to the city gazetteer JSON")
	fs.StringVar(&f.metadataPath, "metadata", "", "path to the document metadata JSON")
	fs.StringVar(&f.outputPath, "output", "", "path of the JSON snapshot written by the file sink")
	fs.BoolVar(&f.parseContent, "parse-content", false, "search document bodies when the title has no keyword")
	fs.BoolVar(&f.strictLinks, "strict-links", false, "ignore keyword and city matches inside hyperlinks")
	fs.StringVar(&f.policy, "policy", "", "content policy: short-circuit or scan-all")
	fs.IntVar(&f.workers, "workers", 0, "number of documents classified concurrently")
	fs.StringSliceVar(&f.sinks, "sink", nil, "snapshot sinks: file, elasticsearch, kafka")
	fs.Float64Var(&f.titleThreshold, "title-threshold", 0, "similarity needed for a city match in the title")
	fs.Float64Var(&f.contentThreshold, "content-threshold", 0, "similarity needed for a city match in the body")
	fs.IntVar(&f.proximityThreshold, "proximity", 0, "maximum token distance between a city and a keyword")

	return cmd
}

// apply overrides cfg with the flags given on the command line.
func (f *flags) apply(fs *pflag.FlagSet, cfg *config.Mapper) {
	if fs.Changed("cities") {
		cfg.CitiesPath = f.citiesPath
	}
	if fs.Changed("metadata") {
		cfg.MetadataPath = f.metadataPath
	}
	if fs.Changed("output") {
		cfg.OutputPath = f.outputPath
	}
	if fs.Changed("parse-content") {
		cfg.ParseContent = f.parseContent
	}
	if fs.Changed("strict-links") {
		cfg.RelaxedLinks = !f.strictLinks
	}
	if fs.Changed("policy") {
		cfg.Policy = f.policy
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("sink") {
		cfg.Sinks = f.sinks
	}
	if fs.Changed("title-threshold") {
		cfg.TitleThreshold = f.titleThreshold
	}
	if fs.Changed("content-threshold") {
		cfg.ContentThreshold = f.contentThreshold
	}
	if fs.Changed("proximity") {
		cfg.ProximityThreshold = f.proximityThreshold
	}
}

func run(ctx context.Context, runID string, cfg *config.Mapper, args []string, log *slog.Logger, out io.Writer) error {
	keywords := processing.NewKeywordSet(args...)
	if len(keywords) == 0 {
		return errors.New("at least one non-empty keyword is required")
	}

	gaz, err := gazetteer.Load(cfg.CitiesPath)
	if err != nil {
		return err
	}
	log.Debug("gazetteer loaded", slog.Int("cities", gaz.Len()), slog.Int("duplicates", gaz.Duplicates()))

	docs, err := metadata.Load(cfg.MetadataPath)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := buildSinks(cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	policy, err := classifier.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	c := classifier.New(gaz, keywords, classifier.Options{
		TitleThreshold:     cfg.TitleThreshold,
		ContentThreshold:   cfg.ContentThreshold,
		ProximityThreshold: cfg.ProximityThreshold,
		ParseContent:       cfg.ParseContent,
		RelaxedLinks:       cfg.RelaxedLinks,
		Policy:             policy,
	}, classifier.WithLogger(log))

	log.Info("mapping started",
		slog.Int("documents", len(docs)),
		slog.Int("cities", gaz.Len()),
		slog.Any("keywords", keywords.Words()),
		slog.Int("workers", cfg.Workers),
		slog.Bool("parse_content", cfg.ParseContent),
		slog.String("policy", string(policy)),
	)

	index, stats, err := aggregate.New(c, cfg.Workers, log).Run(ctx, docs)
	if err != nil {
		return fmt.Errorf("map documents: %w", err)
	}

	snap := export.Snapshot{
		ID:        runID,
		CreatedAt: time.Now().UTC(),
		Keywords:  keywords.Words(),
		Records:   index.Records(gaz),
	}

	exportCtx, cancel := context.WithTimeout(ctx, cfg.ExportTimeout)
	defer cancel()
	if err := sinks.Export(exportCtx, snap); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	log.Info("mapping finished",
		slog.Int("documents", stats.Total),
		slog.Int("relevant", stats.Relevant),
		slog.Int("discarded", stats.Discarded),
		slog.Int("failed", stats.Failed),
		slog.Int("attributions", stats.Attributions),
		slog.Int("cities", len(snap.Records)),
		slog.Duration("duration", stats.Duration),
	)

	target := sinks.Name()
	if cfg.HasSink(config.SinkFile) {
		target = cfg.OutputPath
	}
	fmt.Fprintf(out, "Processing completed. Results saved to %s\n", target)
	return nil
}

func buildSinks(cfg *config.Mapper, log *slog.Logger) (export.Multi, func(), error) {
	var (
		sinks   export.Multi
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("close sink", slog.Any("err", err))
			}
		}
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkFile:
			sinks = append(sinks, export.FileSink{Path: cfg.OutputPath})
		case config.SinkElasticsearch:
			client, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, export.NewElasticsearchSink(client, cfg.PruneBatch, log))
		case config.SinkKafka:
			w := export.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
			closers = append(closers, w.Close)
			sinks = append(sinks, export.NewKafkaSink(w, 0))
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, closeAll, nil
}
