// Package reload loads index artifacts into the live holder, either on demand
// or when the indexer announces a new build on Kafka.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/artifact"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/live"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
)

const (
	TriggerStartup = "startup"
	TriggerEvent   = "event"
	TriggerManual  = "manual"
)

// LoadFunc reads an artifact; artifact.Load in production.
type LoadFunc func(path string) (*artifact.Loaded, error)

// Reloader serialises loads so two reloads never race to install snapshots.
type Reloader struct {
	live    *live.Index
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	load    LoadFunc
	logger  *slog.Logger

	mu   sync.Mutex
	path string
}

func New(idx *live.Index, path string, queryCache *cache.QueryCache, m *metrics.Metrics) *Reloader {
	return &Reloader{
		live:    idx,
		cache:   queryCache,
		metrics: m,
		load:    artifact.Load,
		path:    path,
		logger:  logger.WithComponent("index-reloader"),
	}
}

// WithLoader replaces the artifact reader.
func (r *Reloader) WithLoader(load LoadFunc) *Reloader {
	r.load = load
	return r
}

// Reload re-reads the current artifact path.
func (r *Reloader) Reload(ctx context.Context, trigger string) (*live.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx, r.path, trigger)
}

// LoadPath loads the artifact at path and makes it the reload target.
func (r *Reloader) LoadPath(ctx context.Context, path, trigger string) (*live.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, err := r.loadLocked(ctx, path, trigger)
	if err != nil {
		return nil, err
	}
	r.path = path
	return snap, nil
}

func (r *Reloader) loadLocked(ctx context.Context, path, trigger string) (*live.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loaded, err := r.load(path)
	if err != nil {
		r.countSwap(trigger, "failed")
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	snap := live.FromLoaded(loaded)
	old := r.live.Swap(snap)
	r.countSwap(trigger, "ok")
	if r.metrics != nil {
		r.metrics.IndexDocuments.Set(float64(snap.Index.DocCount()))
		r.metrics.IndexTerms.Set(float64(snap.Index.TermCount()))
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after swap failed", "error", err)
		}
	}
	r.logger.Info("index swapped",
		"trigger", trigger,
		"path", path,
		"build_id", snap.BuildID,
		"previous_build_id", old.BuildID,
		"documents", snap.Index.DocCount(),
		"terms", snap.Index.TermCount(),
	)
	return snap, nil
}

// HandleEvent consumes catalog.index.published messages. An announcement of
// the build already being served is ignored.
func (r *Reloader) HandleEvent(ctx context.Context, _ []byte, value []byte) error {
	event, err := kafka.DecodeJSON[artifact.Published](value)
	if err != nil {
		return err
	}
	if event.BuildID != "" && event.BuildID == r.live.Current().BuildID {
		r.logger.Debug("build already live", "build_id", event.BuildID)
		return nil
	}
	snap, err := r.LoadPath(ctx, event.ArtifactPath, TriggerEvent)
	if err != nil {
		return err
	}
	if event.BuildID != "" && snap.BuildID != event.BuildID {
		r.logger.Warn("loaded artifact does not match announced build",
			"announced", event.BuildID,
			"loaded", snap.BuildID,
		)
	}
	return nil
}

// Path returns the artifact path the next Reload will read.
func (r *Reloader) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *Reloader) countSwap(trigger, status string) {
	if r.metrics != nil {
		r.metrics.IndexSwapsTotal.WithLabelValues(trigger, status).Inc()
	}
}
