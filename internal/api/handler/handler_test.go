package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/admin"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/ratelimit"
)

type stubRebuilder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubRebuilder) Rebuild(_ context.Context, trigger string) (*refresh.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &refresh.Result{Version: 2, Trigger: trigger, Published: true}, nil
}

func (s *stubRebuilder) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubRebuilder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubHistory struct{}

func (stubHistory) Recent(_ context.Context, limit int) ([]refresh.Attempt, error) {
	return []refresh.Attempt{{ID: 1, Version: 1, Status: refresh.StatusSuccess}}, nil
}

type fixture struct {
	server    *httptest.Server
	store     *catalog.Store
	rebuilder *stubRebuilder
	agg       *analytics.Aggregator
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, build bool) *fixture {
	t.Helper()
	store := catalog.NewStore()
	if build {
		snap, err := catalog.Build(catalog.Dataset{
			"Acme": {recency.ThirtyDays: {{Title: "Two Sum", Frequency: 5}, {Title: "LRU Cache", Frequency: 1}}},
			"Beta": {recency.NinetyDays: {{Title: "two   sum", Frequency: 2}}},
		}, 1)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		store.Publish(snap)
	}

	rebuilder := &stubRebuilder{}
	agg := analytics.NewAggregator()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	limiter := ratelimit.New(time.Minute)
	t.Cleanup(limiter.Close)

	h := handler.New(query.New(store), config.SearchConfig{DefaultLimit: 20, MaxResults: 50},
		handler.WithRebuilder(rebuilder),
		handler.WithTracker(agg),
		handler.WithHistory(stubHistory{}),
		handler.WithMetrics(m),
	)
	srv := httptest.NewServer(router.New(h, router.Options{
		Analytics:      analytics.NewHandler(agg, nil),
		Metrics:        m,
		RebuildLimiter: limiter,
		RebuildLimit:   2,
		RequestTimeout: 5 * time.Second,
	}))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, store: store, rebuilder: rebuilder, agg: agg, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("%s %s: missing request id header", method, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestGetProblem(t *testing.T) {
	f := newFixture(t, true)

	var view query.ProblemView
	if code := f.do(t, http.MethodGet, "/api/v1/problems/two-sum", &view); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if view.Title != "Two Sum" || len(view.Companies) != 2 {
		t.Errorf("unexpected view %+v", view)
	}

	view = query.ProblemView{}
	f.do(t, http.MethodGet, "/api/v1/problems/Two%20Sum?window=30", &view)
	if len(view.Companies) != 1 || view.Companies[0].Company != "Acme" {
		t.Errorf("30-day view should hold only Acme, got %+v", view.Companies)
	}
	if view.Window != recency.ThirtyDays {
		t.Errorf("expected resolved window, got %q", view.Window)
	}

	if code := f.do(t, http.MethodGet, "/api/v1/problems/missing-problem", nil); code != http.StatusNotFound {
		t.Errorf("missing problem status = %d", code)
	}
	if got := testutil.ToFloat64(f.metrics.LookupsTotal.WithLabelValues("resolve", "not_found")); got != 1 {
		t.Errorf("expected one not_found lookup metric, got %v", got)
	}
}

func TestGetProblemBeforeFirstBuild(t *testing.T) {
	f := newFixture(t, false)
	if code := f.do(t, http.MethodGet, "/api/v1/problems/two-sum", nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	var st query.Status
	f.do(t, http.MethodGet, "/api/v1/status", &st)
	if st.Ready {
		t.Error("status must report not ready")
	}
}

func TestLookupByTitle(t *testing.T) {
	f := newFixture(t, true)
	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/problems?title=two%20sum", http.StatusOK},
		{"/api/v1/problems?title=LRU+cache&window=all", http.StatusOK},
		{"/api/v1/problems?title=three+sum", http.StatusNotFound},
		{"/api/v1/problems", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if code := f.do(t, http.MethodGet, tt.path, nil); code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.path, code, tt.code)
		}
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, true)
	var body struct {
		Query   string            `json:"query"`
		Limit   int               `json:"limit"`
		Version uint64            `json:"version"`
		Results []query.SearchHit `json:"results"`
	}
	if code := f.do(t, http.MethodGet, "/api/v1/search?q=sum", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Results) != 1 || body.Results[0].CompanyCount != 2 || body.Limit != 20 || body.Version != 1 {
		t.Errorf("unexpected body %+v", body)
	}

	f.do(t, http.MethodGet, "/api/v1/search?q=a&limit=1000", &body)
	if body.Limit != 50 {
		t.Errorf("expected limit clamped to 50, got %d", body.Limit)
	}

	for _, path := range []string{"/api/v1/search", "/api/v1/search?q=sum&limit=0", "/api/v1/search?q=sum&limit=x"} {
		if code := f.do(t, http.MethodGet, path, nil); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, code)
		}
	}
	if got := f.agg.Stats().TotalSearches; got != 2 {
		t.Errorf("expected 2 tracked searches, got %d", got)
	}
}

func TestCompanies(t *testing.T) {
	f := newFixture(t, true)
	var list struct {
		Companies []query.CompanySummary `json:"companies"`
		Total     int                    `json:"total"`
	}
	f.do(t, http.MethodGet, "/api/v1/companies", &list)
	if list.Total != 2 || list.Companies[0].Name != "Acme" || list.Companies[0].ProblemCount != 2 {
		t.Errorf("unexpected companies %+v", list)
	}

	var problems struct {
		Problems []query.CompanyProblem `json:"problems"`
	}
	if code := f.do(t, http.MethodGet, "/api/v1/companies/Acme/problems?limit=1", &problems); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(problems.Problems) != 1 || problems.Problems[0].Key != "two-sum" {
		t.Errorf("unexpected problems %+v", problems.Problems)
	}
	if code := f.do(t, http.MethodGet, "/api/v1/companies/Nobody/problems", nil); code != http.StatusNotFound {
		t.Errorf("unknown company status = %d", code)
	}
}

func TestRebuildRateLimited(t *testing.T) {
	f := newFixture(t, true)
	for i := range 2 {
		var res refresh.Result
		if code := f.do(t, http.MethodPost, "/api/v1/index/rebuild", &res); code != http.StatusOK {
			t.Fatalf("rebuild %d: status = %d", i, code)
		}
		if !strings.HasPrefix(res.Trigger, "api") {
			t.Errorf("unexpected trigger %q", res.Trigger)
		}
	}
	if code := f.do(t, http.MethodPost, "/api/v1/index/rebuild", nil); code != http.StatusTooManyRequests {
		t.Errorf("third rebuild status = %d, want 429", code)
	}
	if n := f.rebuilder.count(); n != 2 {
		t.Errorf("expected 2 rebuilds, got %d", n)
	}
}

func TestRebuildFailureStatus(t *testing.T) {
	f := newFixture(t, true)
	f.rebuilder.fail(fmt.Errorf("building: %w", apperrors.ErrNoData))
	if code := f.do(t, http.MethodPost, "/api/v1/index/rebuild", nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	f.rebuilder.fail(errors.New("boom"))
	if code := f.do(t, http.MethodPost, "/api/v1/index/rebuild", nil); code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
}

func TestRebuildHistoryAndCacheDisabled(t *testing.T) {
	f := newFixture(t, true)
	var history struct {
		Rebuilds []refresh.Attempt `json:"rebuilds"`
	}
	if code := f.do(t, http.MethodGet, "/api/v1/index/rebuilds", &history); code != http.StatusOK || len(history.Rebuilds) != 1 {
		t.Errorf("history status = %d, rows = %d", code, len(history.Rebuilds))
	}

	var stats map[string]string
	f.do(t, http.MethodGet, "/api/v1/cache/stats", &stats)
	if stats["status"] != "disabled" {
		t.Errorf("expected disabled cache, got %v", stats)
	}
	if code := f.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil); code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d", code)
	}
}

func TestAnalyticsRoute(t *testing.T) {
	f := newFixture(t, true)
	f.do(t, http.MethodGet, "/api/v1/problems/two-sum", nil)
	var stats analytics.AggregatedStats
	if code := f.do(t, http.MethodGet, "/api/v1/analytics", &stats); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if stats.TotalLookups != 1 {
		t.Errorf("expected 1 lookup, got %d", stats.TotalLookups)
	}
}

func TestRebuildRequiresAdminKey(t *testing.T) {
	rebuilder := &stubRebuilder{}
	h := handler.New(query.New(catalog.NewStore()), config.SearchConfig{DefaultLimit: 20, MaxResults: 50},
		handler.WithRebuilder(rebuilder),
	)
	srv := httptest.NewServer(router.New(h, router.Options{
		AdminKeys: admin.NewStatic([]string{"s3cret"}),
	}))
	defer srv.Close()

	post := func(key string) int {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/index/rebuild", nil)
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(""); code != http.StatusUnauthorized {
		t.Errorf("missing key: status %d", code)
	}
	if code := post("wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong key: status %d", code)
	}
	if code := post("s3cret"); code != http.StatusOK {
		t.Errorf("valid key: status %d", code)
	}
	if rebuilder.count() != 1 {
		t.Errorf("expected exactly one rebuild, got %d", rebuilder.count())
	}
}
