package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/registry"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/weighting"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/tracing"
)

// Recorder persists build metadata; *registry.Store in production.
type Recorder interface {
	Record(ctx context.Context, b registry.Build) error
}

// Publisher announces builds; *kafka.Producer in production.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Build is the outcome of one Run.
type Build struct {
	ID       string
	Path     string
	Index    *index.Index
	Manifest *artifact.Manifest
	Duration time.Duration
}

// Builder runs corpus -> weights -> inverted index -> artifact and then
// announces the result.
type Builder struct {
	cfg       config.IndexerConfig
	metrics   *metrics.Metrics
	recorder  Recorder
	publisher Publisher
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

func NewBuilder(cfg config.IndexerConfig, m *metrics.Metrics) *Builder {
	return &Builder{
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("indexer"),
	}
}

// WithRecorder stores every published build in r.
func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.recorder = r
	return b
}

// WithPublisher announces every published build through p.
func (b *Builder) WithPublisher(p Publisher) *Builder {
	b.publisher = p
	return b
}

// WithRetry sets the backoff used for the recorder and publisher.
func (b *Builder) WithRetry(cfg resilience.RetryConfig) *Builder {
	b.retry = cfg
	return b
}

// Run builds an index for c and saves it to the configured artifact path.
func (b *Builder) Run(ctx context.Context, c *corpus.Corpus) (*Build, error) {
	start := time.Now()
	build := &Build{ID: uuid.NewString(), Path: b.cfg.ArtifactPath}
	ctx, span := tracing.StartSpan(ctx, "index.build", build.ID)
	span.SetAttr("documents", c.Len())
	log := b.logger.With("build_id", build.ID)
	log.Info("index build started", "documents", c.Len(), "workers", b.cfg.Workers, "output", build.Path)

	err := b.run(ctx, c, build)
	build.Duration = time.Since(start)
	span.Err = err
	span.End()
	span.Log(log)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	if b.metrics != nil {
		b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
		b.metrics.IndexBuildDuration.Observe(build.Duration.Seconds())
	}
	if err != nil {
		log.Error("index build failed", "error", err, "duration_ms", build.Duration.Milliseconds())
		return nil, err
	}
	if b.metrics != nil {
		b.metrics.IndexDocuments.Set(float64(build.Index.DocCount()))
		b.metrics.IndexTerms.Set(float64(build.Index.TermCount()))
	}
	log.Info("index build completed",
		"documents", build.Index.DocCount(),
		"terms", build.Index.TermCount(),
		"digest", build.Manifest.Digest,
		"duration_ms", build.Duration.Milliseconds(),
	)
	return build, nil
}

func (b *Builder) run(ctx context.Context, c *corpus.Corpus, build *Build) error {
	var matrix *weighting.Matrix
	if err := tracing.Stage(ctx, "weighting", func(ctx context.Context) error {
		var err error
		matrix, err = weighting.Compute(ctx, c.Documents(), b.cfg.Workers)
		return err
	}); err != nil {
		return fmt.Errorf("weighting corpus: %w", err)
	}

	_ = tracing.Stage(ctx, "invert", func(ctx context.Context) error {
		build.Index = index.Build(matrix)
		tracing.SpanFromContext(ctx).SetAttr("terms", build.Index.TermCount())
		return nil
	})

	return tracing.Stage(ctx, "save", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := artifact.Save(build.Path, build.Index, build.ID)
		if err != nil {
			return err
		}
		build.Manifest = m
		return nil
	})
}

// Publish records build in the registry and announces it on Kafka, each
// only when configured. Transient failures are retried.
func (b *Builder) Publish(ctx context.Context, build *Build) error {
	if b.recorder != nil {
		rec := registry.Build{
			BuildID:      build.ID,
			ArtifactPath: build.Path,
			Digest:       build.Manifest.Digest,
			Documents:    build.Manifest.DocumentCount,
			Terms:        build.Manifest.TermCount,
			CreatedAt:    build.Manifest.CreatedAt,
		}
		if err := resilience.Retry(ctx, "registry.record", b.retry, func() error {
			return b.recorder.Record(ctx, rec)
		}); err != nil {
			return fmt.Errorf("recording build: %w", err)
		}
	}
	if b.publisher != nil {
		event := kafka.Event{
			Key: build.ID,
			Value: artifact.Published{
				BuildID:      build.ID,
				ArtifactPath: build.Path,
				Documents:    build.Manifest.DocumentCount,
				Terms:        build.Manifest.TermCount,
				Digest:       build.Manifest.Digest,
				PublishedAt:  time.Now().UTC(),
			},
		}
		if err := resilience.Retry(ctx, "kafka.publish", b.retry, func() error {
			return b.publisher.Publish(ctx, event)
		}); err != nil {
			return fmt.Errorf("announcing build: %w", err)
		}
	}
	b.logger.Info("index build published",
		"build_id", build.ID,
		"registry", b.recorder != nil,
		"kafka", b.publisher != nil,
	)
	return nil
}
