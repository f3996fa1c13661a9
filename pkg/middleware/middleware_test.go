package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/ratelimit"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/problems/two-sum":        "/api/v1/problems/{id}",
		"/api/v1/companies/Acme/problems": "/api/v1/companies/{id}/problems",
		"/api/v1/search":                  "/api/v1/search",
		"/health/ready":                   "/health/ready",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequestIDPropagatesAndMints(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc" || rec.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("expected propagated id abc, got ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc" {
		t.Errorf("expected a freshly minted id, got %q", seen)
	}
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	limiter := ratelimit.New(time.Hour)
	defer limiter.Close()
	h := RateLimit(limiter, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil))

	if first.Code != http.StatusOK {
		t.Errorf("first request: expected 200, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "3600" {
		t.Errorf("expected Retry-After 3600, got %q", second.Header().Get("Retry-After"))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Errorf("unexpected allow-origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

type keyFunc func(raw string) (string, error)

func (f keyFunc) Validate(_ context.Context, raw string) (string, error) { return f(raw) }

func TestRequireKey(t *testing.T) {
	v := keyFunc(func(raw string) (string, error) {
		switch raw {
		case "good":
			return "ops", nil
		case "broken":
			return "", errors.New("db down")
		default:
			return "", apperrors.ErrUnauthorized
		}
	})
	var owner string
	h := RequireKey(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner = KeyOwner(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer good", http.StatusOK},
		{"header", "X-API-Key", "good", http.StatusOK},
		{"wrong", "X-API-Key", "bad", http.StatusUnauthorized},
		{"backend error", "X-API-Key", "broken", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("code = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && owner != "ops" {
				t.Errorf("owner = %q", owner)
			}
		})
	}
}
