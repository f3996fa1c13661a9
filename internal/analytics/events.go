package analytics

import "time"

type EventType string

const (
	EventLookup  EventType = "lookup"
	EventSearch  EventType = "search"
	EventCompany EventType = "company"
)

// QueryEvent describes one answered read request.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Kind      string    `json:"kind,omitempty"`
	Query     string    `json:"query"`
	Key       string    `json:"key,omitempty"`
	Window    string    `json:"window,omitempty"`
	Found     bool      `json:"found"`
	Results   int       `json:"results"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Version   uint64    `json:"snapshot_version"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Tracker accepts events without blocking the request path. *Collector ships
// them to Kafka; *Aggregator folds them in-process.
type Tracker interface {
	Track(event QueryEvent)
}
