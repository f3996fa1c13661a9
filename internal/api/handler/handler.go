// Package handler serves the problem index over HTTP: lookups, search,
// company views, status and rebuild control.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/middleware"
)

const defaultHistoryLimit = 20

type Rebuilder interface {
	Rebuild(ctx context.Context, trigger string) (*refresh.Result, error)
}

type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]refresh.Attempt, error)
}

type Handler struct {
	engine    *query.Engine
	rebuilder Rebuilder
	cache     *cache.SearchCache
	tracker   analytics.Tracker
	history   HistoryLister
	metrics   *metrics.Metrics
	search    config.SearchConfig
	logger    *slog.Logger
}

type Option func(*Handler)

func WithRebuilder(r Rebuilder) Option { return func(h *Handler) { h.rebuilder = r } }

func WithCache(c *cache.SearchCache) Option { return func(h *Handler) { h.cache = c } }

func WithTracker(t analytics.Tracker) Option { return func(h *Handler) { h.tracker = t } }

func WithHistory(l HistoryLister) Option { return func(h *Handler) { h.history = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

func New(engine *query.Engine, search config.SearchConfig, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		search: search,
		logger: slog.Default().With("component", "api-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type searchResponse struct {
	Query    string            `json:"query"`
	Limit    int               `json:"limit"`
	Version  uint64            `json:"version"`
	CacheHit bool              `json:"cache_hit"`
	Results  []query.SearchHit `json:"results"`
}

// GetProblem resolves {key} as either an identity key or a free-text title.
func (h *Handler) GetProblem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	input := r.PathValue("key")
	window := r.URL.Query().Get("window")

	view, ok := h.engine.Resolve(input, window)
	h.observeLookup(r.Context(), "resolve", input, window, view, ok, start)
	if !ok {
		h.writeNotFound(w, apperrors.ErrProblemNotFound, input)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// LookupByTitle answers GET /api/v1/problems?title=.
func (h *Handler) LookupByTitle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	title := r.URL.Query().Get("title")
	if title == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'title' is required")
		return
	}
	window := r.URL.Query().Get("window")

	view, ok := h.engine.LookupByTitle(title, window)
	h.observeLookup(r.Context(), "title", title, window, view, ok, start)
	if !ok {
		h.writeNotFound(w, apperrors.ErrProblemNotFound, title)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, ok := h.parseLimit(w, r, h.search.DefaultLimit, h.search.MaxResults)
	if !ok {
		return
	}

	var version uint64
	if snap := h.engine.Snapshot(); snap != nil {
		version = snap.Version
	}
	compute := func() []query.SearchHit { return h.engine.Search(q, limit) }

	var hits []query.SearchHit
	cacheHit := false
	if h.cache != nil && version > 0 {
		hits, cacheHit = h.cache.GetOrCompute(ctx, version, q, limit, compute)
	} else {
		hits = compute()
	}

	latency := time.Since(start)
	log.Info("search completed",
		"query", q,
		"returned", len(hits),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.metrics != nil {
		resultType := "hit"
		if len(hits) == 0 {
			resultType = "zero_result"
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.SearchResultsCount.Observe(float64(len(hits)))
	}
	h.track(ctx, analytics.QueryEvent{
		Type:      analytics.EventSearch,
		Query:     q,
		Found:     len(hits) > 0,
		Results:   len(hits),
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Version:   version,
	})

	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:    q,
		Limit:    limit,
		Version:  version,
		CacheHit: cacheHit,
		Results:  hits,
	})
}

func (h *Handler) Companies(w http.ResponseWriter, r *http.Request) {
	companies := h.engine.Companies()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"companies": companies,
		"total":     len(companies),
	})
}

// CompanyProblems lists a company's problems by its frequency. limit is
// optional; without it every matching problem is returned.
func (h *Handler) CompanyProblems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")
	window := r.URL.Query().Get("window")
	limit, ok := h.parseLimit(w, r, 0, 0)
	if !ok {
		return
	}

	problems, found := h.engine.CompanyProblems(name, window, limit)
	h.track(r.Context(), analytics.QueryEvent{
		Type:      analytics.EventCompany,
		Query:     name,
		Window:    window,
		Found:     found,
		Results:   len(problems),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	if !found {
		h.writeNotFound(w, apperrors.ErrCompanyNotFound, name)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"company":  name,
		"window":   window,
		"problems": problems,
		"total":    len(problems),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

// Rebuild triggers a rebuild or joins the one in flight and reports its
// outcome. A failure leaves the previous snapshot serving.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rebuilds are disabled")
		return
	}
	trigger := "api"
	if owner := middleware.KeyOwner(r.Context()); owner != "" {
		trigger += ":" + owner
	}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		trigger += ":" + id
	}
	result, err := h.rebuilder.Rebuild(r.Context(), trigger)
	if err != nil {
		logger.FromContext(r.Context()).Error("rebuild failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Rebuilds(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rebuild history is disabled")
		return
	}
	limit, ok := h.parseLimit(w, r, defaultHistoryLimit, 500)
	if !ok {
		return
	}
	attempts, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing rebuild history failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list rebuild history")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"rebuilds": attempts,
		"total":    len(attempts),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeLookup(ctx context.Context, kind, input, window string, view *query.ProblemView, found bool, start time.Time) {
	outcome := "found"
	if !found {
		outcome = "not_found"
	}
	if h.metrics != nil {
		h.metrics.LookupsTotal.WithLabelValues(kind, outcome).Inc()
	}
	event := analytics.QueryEvent{
		Type:      analytics.EventLookup,
		Kind:      kind,
		Query:     input,
		Window:    window,
		Found:     found,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if view != nil {
		event.Key = view.Key
		event.Results = len(view.Companies)
	}
	h.track(ctx, event)
}

func (h *Handler) track(ctx context.Context, event analytics.QueryEvent) {
	if h.tracker == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	if event.Version == 0 {
		if snap := h.engine.Snapshot(); snap != nil {
			event.Version = snap.Version
		}
	}
	h.tracker.Track(event)
}

// parseLimit reads ?limit=, applying def when absent and clamping to maxLimit
// when maxLimit > 0. It writes a 400 and returns false on bad input.
func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed < 1 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if maxLimit > 0 && parsed > maxLimit {
		parsed = maxLimit
	}
	return parsed, true
}

// writeNotFound distinguishes an unknown key from an index that has not been
// built yet.
func (h *Handler) writeNotFound(w http.ResponseWriter, sentinel error, input string) {
	if !h.engine.Status().Ready {
		h.writeError(w, apperrors.HTTPStatusCode(apperrors.ErrIndexNotReady), apperrors.ErrIndexNotReady.Error())
		return
	}
	h.writeError(w, apperrors.HTTPStatusCode(sentinel), fmt.Sprintf("%s: %s", sentinel, input))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
