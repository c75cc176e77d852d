package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/live"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Reloader replaces the live index from its artifact.
type Reloader interface {
	Reload(ctx context.Context, trigger string) (*live.Snapshot, error)
}

type Handler struct {
	index        *live.Index
	cache        *cache.QueryCache
	reloader     Reloader
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	Status     string       `json:"status"`
	Timestamp  time.Time    `json:"timestamp"`
	StatusCode int          `json:"statusCode"`
	Path       string       `json:"path"`
	Query      string       `json:"query"`
	Total      int          `json:"total"`
	Result     []scorer.Hit `json:"result"`
}

type errorResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"statusCode"`
	Path       string    `json:"path"`
	Error      string    `json:"error"`
}

// IndexInfo describes the snapshot being served.
type IndexInfo struct {
	BuildID   string    `json:"build_id"`
	Path      string    `json:"path"`
	LoadedAt  time.Time `json:"loaded_at"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
}

func New(idx *live.Index, queryCache *cache.QueryCache, reloader Reloader, m *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		index:        idx,
		cache:        queryCache,
		reloader:     reloader,
		metrics:      m,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       logger.WithComponent("search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	query := r.URL.Query().Get("query")

	k, err := h.parseK(r.URL.Query().Get("k"))
	if err != nil {
		h.countQuery("invalid")
		h.writeError(w, r, err)
		return
	}

	snap := h.index.Current()
	compute := func() (*scorer.Result, error) {
		res, err := scorer.Search(snap.Index, query, k)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}

	var result *scorer.Result
	cacheStatus := "disabled"
	if h.cache != nil {
		var hit bool
		result, hit, err = h.cache.GetOrCompute(ctx, snap.BuildID, query, k, compute)
		switch {
		case hit:
			cacheStatus = "hit"
		case h.cache.Enabled():
			cacheStatus = "miss"
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.countQuery("error")
		h.writeError(w, r, err)
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(result.Hits)))
	}
	if result.Total == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("hit")
	}
	log.Info("search completed",
		"query", query,
		"k", k,
		"total_hits", result.Total,
		"returned", len(result.Hits),
		"cache", cacheStatus,
		"build_id", snap.BuildID,
		"latency_ms", elapsed.Milliseconds(),
	)

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Status:     statusSuccess,
		Timestamp:  time.Now().UTC(),
		StatusCode: http.StatusOK,
		Path:       r.URL.Path,
		Query:      query,
		Total:      result.Total,
		Result:     result.Hits,
	})
}

// parseK applies the default for a missing k and caps large values.
func (h *Handler) parseK(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidArgument("k must be an integer, got %q", raw)
	}
	if k < 0 {
		return 0, apperrors.InvalidArgument("k must be >= 0, got %d", k)
	}
	if k > h.maxResults {
		k = h.maxResults
	}
	return k, nil
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, infoFor(h.index.Current()))
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "reloading is disabled"))
		return
	}
	snap, err := h.reloader.Reload(r.Context(), reload.TriggerManual)
	if err != nil {
		logger.FromContext(r.Context()).Error("index reload failed", "error", err)
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, infoFor(snap))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Enabled() {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int64{
		"hits":   hits,
		"misses": misses,
		"total":  hits + misses,
	})
}

func infoFor(snap *live.Snapshot) IndexInfo {
	return IndexInfo{
		BuildID:   snap.BuildID,
		Path:      snap.Path,
		LoadedAt:  snap.LoadedAt,
		Documents: snap.Index.DocCount(),
		Terms:     snap.Index.TermCount(),
	}
}

func (h *Handler) countQuery(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	h.writeJSON(w, status, errorResponse{
		Status:     statusError,
		Timestamp:  time.Now().UTC(),
		StatusCode: status,
		Path:       r.URL.Path,
		Error:      err.Error(),
	})
}
