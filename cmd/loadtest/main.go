// Command loadtest drives a running problemindex with a mix of searches,
// lookups (plain and windowed) and company views, then prints throughput,
// latency percentiles and status codes per request kind.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 30s
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	Titles      []string
	Windows     []string
}

// target is one request the workers cycle through.
type target struct {
	kind string
	path string
}

// buildTargets interleaves every request kind so each worker sees the same
// mix regardless of where it starts.
func buildTargets(cfg Config) []target {
	var out []target
	n := max(len(cfg.Queries), len(cfg.Titles))
	for i := 0; i < n; i++ {
		if len(cfg.Queries) > 0 {
			q := cfg.Queries[i%len(cfg.Queries)]
			out = append(out, target{"search", "/api/v1/search?limit=10&q=" + url.QueryEscape(q)})
		}
		if len(cfg.Titles) > 0 {
			title := cfg.Titles[i%len(cfg.Titles)]
			out = append(out, target{"lookup", "/api/v1/problems/" + url.PathEscape(title)})
			if len(cfg.Windows) > 0 {
				w := cfg.Windows[i%len(cfg.Windows)]
				out = append(out, target{"lookup_window", "/api/v1/problems/" + url.PathEscape(title) + "?window=" + url.QueryEscape(w)})
			}
		}
	}
	out = append(out, target{"companies", "/api/v1/companies"}, target{"status", "/api/v1/status"})
	return out
}

type kindStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

type Stats struct {
	mu    sync.Mutex
	kinds map[string]*kindStats
}

func NewStats() *Stats {
	return &Stats{kinds: make(map[string]*kindStats)}
}

func (s *Stats) kind(name string) *kindStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kinds[name]
	if !ok {
		k = &kindStats{codes: make(map[int]int64)}
		s.kinds[name] = k
	}
	return k
}

func (s *Stats) Record(kind string, d time.Duration, status int, cacheHit bool, err error) {
	k := s.kind(kind)
	k.requests.Add(1)
	if err != nil || status >= 500 {
		k.errors.Add(1)
	}
	if cacheHit {
		k.cacheHits.Add(1)
	}
	if err != nil {
		return
	}
	k.mu.Lock()
	k.latencies = append(k.latencies, d)
	k.codes[status]++
	k.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the problem index")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queries := flag.String("queries", "sum,tree,array,string,linked list,cache,path,interval,matrix,subarray", "comma-separated search queries")
	titles := flag.String("titles", "Two Sum,LRU Cache,Merge Intervals,Number of Islands,Trapping Rain Water,two-sum", "comma-separated titles or keys to look up")
	windows := flag.String("windows", "30,60,90,all", "comma-separated windows for windowed lookups")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     splitList(*queries),
		Titles:      splitList(*titles),
		Windows:     splitList(*windows),
	}
	targets := buildTargets(cfg)

	fmt.Println("=== Problem Index Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Requests:    %d distinct\n", len(targets))
	fmt.Println()

	stats := runLoadTest(cfg, targets)
	if total := printReport(os.Stdout, stats, cfg.Duration); total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func runLoadTest(cfg Config, targets []target) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				t := targets[i%len(targets)]
				status, hit, d, err := fire(ctx, client, cfg.BaseURL+t.path)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(t.kind, d, status, hit, err)
			}
			return nil
		})
	}
	g.Wait()
	return stats
}

func fire(ctx context.Context, client *http.Client, rawURL string) (status int, cacheHit bool, d time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, false, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, time.Since(start), err
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	data, _ := io.ReadAll(resp.Body)
	d = time.Since(start)
	_ = json.Unmarshal(data, &body)
	return resp.StatusCode, body.CacheHit, d, nil
}

func printReport(w io.Writer, stats *Stats, duration time.Duration) int64 {
	stats.mu.Lock()
	names := make([]string, 0, len(stats.kinds))
	for name := range stats.kinds {
		names = append(names, name)
	}
	stats.mu.Unlock()
	sort.Strings(names)

	var total int64
	for _, name := range names {
		k := stats.kind(name)
		requests := k.requests.Load()
		total += requests

		k.mu.Lock()
		latencies := append([]time.Duration(nil), k.latencies...)
		codes := make(map[int]int64, len(k.codes))
		for c, n := range k.codes {
			codes[c] = n
		}
		k.mu.Unlock()
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		fmt.Fprintf(w, "=== %s ===\n", name)
		fmt.Fprintf(w, "Requests:     %d (%.1f/s)\n", requests, float64(requests)/duration.Seconds())
		fmt.Fprintf(w, "Errors:       %d\n", k.errors.Load())
		if name == "search" && requests > 0 {
			fmt.Fprintf(w, "Cache hits:   %.1f%%\n", float64(k.cacheHits.Load())/float64(requests)*100)
		}
		if len(latencies) > 0 {
			fmt.Fprintf(w, "Latency:      p50=%s p90=%s p99=%s max=%s\n",
				percentile(latencies, 50), percentile(latencies, 90),
				percentile(latencies, 99), latencies[len(latencies)-1])
		}
		statuses := make([]int, 0, len(codes))
		for c := range codes {
			statuses = append(statuses, c)
		}
		sort.Ints(statuses)
		for _, c := range statuses {
			fmt.Fprintf(w, "  %d: %d\n", c, codes[c])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total: %d requests, %.1f/s\n", total, float64(total)/duration.Seconds())
	return total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
