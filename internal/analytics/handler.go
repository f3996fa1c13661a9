package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// SnapshotLoader returns the last persisted stats, or nil when none exist.
type SnapshotLoader interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	persisted  SnapshotLoader
	logger     *slog.Logger
}

// NewHandler serves live stats from aggregator. persisted may be nil.
func NewHandler(aggregator *Aggregator, persisted SnapshotLoader) *Handler {
	return &Handler{
		aggregator: aggregator,
		persisted:  persisted,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats answers GET /api/v1/analytics. ?source=persisted returns the last
// saved snapshot instead of live counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") != "persisted" {
		h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
		return
	}
	if h.persisted == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics persistence is disabled"})
		return
	}
	stats, err := h.persisted.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("loading persisted analytics failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load analytics"})
		return
	}
	if stats == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no analytics snapshot saved yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
