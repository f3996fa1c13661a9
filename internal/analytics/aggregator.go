package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/kafka"
)

// maxLatencySamples bounds the latency ring used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalLookups      int64            `json:"total_lookups"`
	NotFoundLookups   int64            `json:"not_found_lookups"`
	TotalSearches     int64            `json:"total_searches"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	CompanyViews      int64            `json:"company_views"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopProblems       []QueryCount     `json:"top_problems"`
	TopQueries        []QueryCount     `json:"top_queries"`
	NotFoundQueries   []QueryCount     `json:"not_found_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	WindowUsage       map[string]int64 `json:"window_usage"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu sync.Mutex

	lookups, notFound int64
	searches, zero    int64
	companyViews      int64
	cacheHits, misses int64
	latencies         []int64
	next              int
	problemCounts     map[string]int64
	queryCounts       map[string]int64
	notFoundQueries   map[string]int64
	zeroResultQueries map[string]int64
	windowUsage       map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		problemCounts:     make(map[string]int64),
		queryCounts:       make(map[string]int64),
		notFoundQueries:   make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		windowUsage:       make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a kafka.MessageHandler feeding agg. Undecodable
// messages are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track folds event into the running totals.
func (a *Aggregator) Track(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventLookup:
		a.lookups++
		if event.Found {
			a.problemCounts[event.Key]++
		} else {
			a.notFound++
			a.notFoundQueries[event.Query]++
		}
	case EventSearch:
		a.searches++
		a.queryCounts[event.Query]++
		if event.Results == 0 {
			a.zero++
			a.zeroResultQueries[event.Query]++
		}
		if event.CacheHit {
			a.cacheHits++
		} else {
			a.misses++
		}
	case EventCompany:
		a.companyViews++
	}
	if event.Window != "" {
		a.windowUsage[event.Window]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalLookups:    a.lookups,
		NotFoundLookups: a.notFound,
		TotalSearches:   a.searches,
		ZeroResultCount: a.zero,
		CompanyViews:    a.companyViews,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.misses,
		WindowUsage:     make(map[string]int64, len(a.windowUsage)),
	}
	for w, n := range a.windowUsage {
		stats.WindowUsage[w] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopProblems = topN(a.problemCounts, 10)
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.NotFoundQueries = topN(a.notFoundQueries, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.lookups+a.searches+a.companyViews) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts; ties order by query for stable output.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
