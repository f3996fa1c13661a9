package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/parser"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
)

type fakeFetcher struct {
	mu    sync.Mutex
	raw   source.Raw
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context) (source.Raw, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw, f.err
}

func (f *fakeFetcher) set(raw source.Raw, err error) {
	f.mu.Lock()
	f.raw, f.err = raw, err
	f.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type countingCache struct{ n atomic.Int32 }

func (c *countingCache) Invalidate(context.Context) error {
	c.n.Add(1)
	return nil
}

type memoryHistory struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (h *memoryHistory) Record(_ context.Context, a Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, a)
	return nil
}

func twoSumRaw() source.Raw {
	return source.Raw{
		"Acme": {recency.ThirtyDays: {"Title,Frequency\nTwo Sum,5\n"}},
		"Beta": {recency.NinetyDays: {"Title,Frequency\ntwo   sum,2\n"}},
	}
}

func TestRebuildPublishesSnapshot(t *testing.T) {
	store := catalog.NewStore()
	fetcher := &fakeFetcher{raw: twoSumRaw()}
	events := &recordingPublisher{}
	cache := &countingCache{}
	history := &memoryHistory{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	r := New(fetcher, parser.New(2), store,
		WithMetrics(m), WithEvents(events), WithCache(cache), WithHistory(history))

	res, err := r.Rebuild(context.Background(), "test")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !res.Published || res.Problems != 1 || res.Companies != 2 || res.Version != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if store.Current() == nil || store.Current().Version != 1 {
		t.Fatal("snapshot not published")
	}
	if cache.n.Load() != 1 {
		t.Errorf("expected one cache invalidation, got %d", cache.n.Load())
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one rebuilt event, got %d", len(events.events))
	}
	if ev, ok := events.events[0].Value.(RebuiltEvent); !ok || ev.Problems != 1 {
		t.Errorf("unexpected event %+v", events.events[0])
	}
	if len(history.attempts) != 1 || history.attempts[0].Status != StatusSuccess {
		t.Errorf("unexpected history %+v", history.attempts)
	}
	if got := testutil.ToFloat64(m.RebuildsTotal.WithLabelValues(StatusSuccess)); got != 1 {
		t.Errorf("expected 1 successful rebuild metric, got %v", got)
	}
	if got := testutil.ToFloat64(m.IndexProblems); got != 1 {
		t.Errorf("expected index problems gauge 1, got %v", got)
	}
}

func TestFailedRebuildKeepsActiveSnapshot(t *testing.T) {
	store := catalog.NewStore()
	fetcher := &fakeFetcher{raw: twoSumRaw()}
	history := &memoryHistory{}
	r := New(fetcher, parser.New(1), store, WithHistory(history))

	if _, err := r.Rebuild(context.Background(), "initial"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	before := store.Current()

	tests := []struct {
		name string
		raw  source.Raw
		err  error
		want error
	}{
		{"fetch error", nil, apperrors.ErrSourceUnavailable, apperrors.ErrSourceUnavailable},
		{"no valid records", source.Raw{"Acme": {recency.ThirtyDays: {"Title\n\"\"\n"}}}, nil, apperrors.ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher.set(tt.raw, tt.err)
			_, err := r.Rebuild(context.Background(), "retry")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if store.Current() != before {
				t.Fatal("failed rebuild replaced the active snapshot")
			}
			if store.Current().ProblemCount() != 1 {
				t.Error("problem count changed after failed rebuild")
			}
		})
	}
	last := history.attempts[len(history.attempts)-1]
	if last.Status != StatusFailure || last.Error == "" {
		t.Errorf("expected failure recorded, got %+v", last)
	}
}

func TestConcurrentRebuildsCoalesce(t *testing.T) {
	store := catalog.NewStore()
	fetcher := &fakeFetcher{raw: twoSumRaw(), gate: make(chan struct{})}
	r := New(fetcher, parser.New(1), store)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Rebuild(context.Background(), "burst")
			if err != nil {
				t.Errorf("Rebuild: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	for fetcher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	if n := fetcher.calls.Load(); n != 1 {
		t.Errorf("expected a single fetch, got %d", n)
	}
	for _, res := range results {
		if res != nil && res.Version != 1 {
			t.Errorf("expected every caller to see version 1, got %d", res.Version)
		}
	}
}

func TestRebuildVersionsIncrease(t *testing.T) {
	store := catalog.NewStore()
	r := New(&fakeFetcher{raw: twoSumRaw()}, parser.New(1), store)
	for want := uint64(1); want <= 3; want++ {
		res, err := r.Rebuild(context.Background(), "loop")
		if err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
		if res.Version != want || store.Current().Version != want {
			t.Fatalf("expected version %d, got %d", want, res.Version)
		}
	}
}

func TestRebuildCallerCancellation(t *testing.T) {
	store := catalog.NewStore()
	fetcher := &fakeFetcher{raw: twoSumRaw(), gate: make(chan struct{})}
	r := New(fetcher, parser.New(1), store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(ctx, "impatient")
		done <- err
	}()
	for fetcher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(fetcher.gate)
	deadline := time.Now().Add(2 * time.Second)
	for store.Current() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Current() == nil {
		t.Fatal("detached rebuild should still publish")
	}
}

func TestFetchTimeout(t *testing.T) {
	store := catalog.NewStore()
	fetcher := &fakeFetcher{raw: twoSumRaw(), gate: make(chan struct{})}
	defer close(fetcher.gate)
	r := New(fetcher, parser.New(1), store, WithFetchTimeout(20*time.Millisecond))

	_, err := r.Rebuild(context.Background(), "slow-source")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if store.Current() != nil {
		t.Error("timed out rebuild must not publish")
	}
}

func TestHandleRefreshRequest(t *testing.T) {
	store := catalog.NewStore()
	r := New(&fakeFetcher{raw: twoSumRaw()}, parser.New(1), store)

	if err := r.HandleRefreshRequest(context.Background(), nil, []byte("{not json")); !errors.Is(err, kafka.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if err := r.HandleRefreshRequest(context.Background(), nil, []byte(`{"trigger":"upstream-sync"}`)); err != nil {
		t.Fatalf("HandleRefreshRequest: %v", err)
	}
	if store.Current() == nil {
		t.Error("expected a published snapshot")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	store := catalog.NewStore()
	fetcher := &fakeFetcher{raw: twoSumRaw()}
	r := New(fetcher, parser.New(1), store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx, 5*time.Millisecond)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if fetcher.calls.Load() < 2 {
		t.Errorf("expected periodic rebuilds, got %d", fetcher.calls.Load())
	}
}
