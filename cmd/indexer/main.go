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

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/postgres"
)

type options struct {
	configPath string
	input      string
	fromKafka  bool
	output     string
	workers    int
	publish    bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var opts options
	fs := pflag.NewFlagSet("indexer", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	fs.StringVarP(&opts.input, "input", "i", "", "corpus JSONL file, - for stdin (default indexer.corpusPath)")
	fs.BoolVar(&opts.fromKafka, "from-kafka", false, "read the corpus from the documents topic until it goes idle")
	fs.StringVarP(&opts.output, "output", "o", "", "artifact path, .zst for compression (default indexer.artifactPath)")
	fs.IntVarP(&opts.workers, "workers", "w", 0, "weighting workers (default GOMAXPROCS)")
	fs.BoolVar(&opts.publish, "publish", false, "record the build in Postgres and announce it on Kafka")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if fs.Changed("input") {
		cfg.Indexer.CorpusPath = opts.input
	}
	if fs.Changed("output") {
		cfg.Indexer.ArtifactPath = opts.output
	}
	if fs.Changed("workers") {
		cfg.Indexer.Workers = opts.workers
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"input", cfg.Indexer.CorpusPath,
		"from_kafka", opts.fromKafka,
		"output", cfg.Indexer.ArtifactPath,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := readCorpus(ctx, cfg, opts.fromKafka)
	if err != nil {
		return err
	}

	m := metrics.New(nil)
	builder := indexer.NewBuilder(cfg.Indexer, m)
	if opts.publish {
		cleanup, err := wirePublishing(ctx, cfg, builder)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	build, err := builder.Run(ctx, c)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if opts.publish {
		if err := builder.Publish(ctx, build); err != nil {
			return fmt.Errorf("publishing build %s: %w", build.ID, err)
		}
	}
	slog.Info("indexer finished",
		"build_id", build.ID,
		"artifact", build.Path,
		"documents", build.Manifest.DocumentCount,
		"terms", build.Manifest.TermCount,
		"duration_ms", build.Duration.Milliseconds(),
	)
	return nil
}

func readCorpus(ctx context.Context, cfg *config.Config, fromKafka bool) (*corpus.Corpus, error) {
	if fromKafka {
		if !cfg.Kafka.Enabled() {
			return nil, errors.New("--from-kafka needs kafka.brokers")
		}
		slog.Info("reading corpus from kafka",
			"topic", cfg.Kafka.Topics.Documents,
			"idle_timeout", cfg.Kafka.IdleTimeout,
		)
		return corpus.Stream(ctx, documentSubscriber(cfg.Kafka), cfg.Kafka.IdleTimeout)
	}

	var r io.Reader
	if cfg.Indexer.CorpusPath == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(cfg.Indexer.CorpusPath)
		if err != nil {
			return nil, fmt.Errorf("opening corpus: %w", err)
		}
		defer f.Close()
		r = f
	}
	return corpus.Load(r)
}

// documentSubscriber replays the whole documents topic. Every build joins a
// fresh, non-committing group so a rebuild always sees the full corpus.
func documentSubscriber(cfg config.KafkaConfig) corpus.Subscriber {
	return func(ctx context.Context, handle func(context.Context, []byte) error) error {
		consumer := kafka.NewConsumer(cfg, cfg.Topics.Documents,
			func(ctx context.Context, _ []byte, value []byte) error {
				return handle(ctx, value)
			},
			kafka.Replay(cfg.ConsumerGroup+"-indexer"),
		)
		return consumer.Start(ctx)
	}
}

func wirePublishing(ctx context.Context, cfg *config.Config, builder *indexer.Builder) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Postgres.Enabled() {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to registry: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		store := registry.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			cleanup()
			return nil, err
		}
		builder.WithRecorder(store)
		slog.Info("build registry enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		slog.Warn("postgres not configured, builds will not be recorded")
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished)
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				slog.Error("closing kafka producer", "error", err)
			}
		})
		builder.WithPublisher(producer)
		slog.Info("build announcements enabled", "topic", cfg.Kafka.Topics.IndexPublished)
	} else {
		slog.Warn("kafka not configured, builds will not be announced")
	}
	return cleanup, nil
}
