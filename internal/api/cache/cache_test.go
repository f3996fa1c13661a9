package cache

import (
	"context"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	pkgredis "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/redis"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute, nil)
	ctx := context.Background()
	var computed atomic.Int32
	compute := func() []query.SearchHit {
		computed.Add(1)
		return []query.SearchHit{{Title: "Two Sum", Key: "two-sum", CompanyCount: 2}}
	}

	hits, hit := c.GetOrCompute(ctx, 1, "sum", 10, compute)
	if hit || len(hits) != 1 {
		t.Fatalf("first call should miss, got hit=%v hits=%v", hit, hits)
	}
	hits, hit = c.GetOrCompute(ctx, 1, "  SUM ", 10, compute)
	if !hit || hits[0].Key != "two-sum" {
		t.Fatalf("normalized query should hit, got hit=%v", hit)
	}
	if computed.Load() != 1 {
		t.Errorf("expected one computation, got %d", computed.Load())
	}

	if _, hit := c.GetOrCompute(ctx, 2, "sum", 10, compute); hit {
		t.Error("new snapshot version must miss")
	}
	if _, hit := c.GetOrCompute(ctx, 2, "sum", 5, compute); hit {
		t.Error("different limit must miss")
	}

	hitsN, missesN := c.Stats()
	if hitsN != 1 || missesN != 3 {
		t.Errorf("stats = %d/%d, want 1/3", hitsN, missesN)
	}
}

func TestInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	backend.data["other:key"] = "keep"
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, 1, "sum", 10, []query.SearchHit{})

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := c.Get(ctx, 1, "sum", 10); ok {
		t.Error("entry should be gone")
	}
	if _, ok := backend.data["other:key"]; !ok {
		t.Error("unrelated keys must survive")
	}
}
