// Package router wires the HTTP routes and applies the middleware chain
// (RequestID → CORS → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/ratelimit"
)

// Options carries the optional collaborators of the router. Nil fields turn
// the corresponding routes or middleware off.
type Options struct {
	Analytics      *analytics.Handler
	Health         *health.Checker
	Metrics        *metrics.Metrics
	AdminKeys      middleware.KeyValidator
	RebuildLimiter *ratelimit.Limiter
	RebuildLimit   int
	RequestTimeout time.Duration
}

// New builds the full HTTP handler.
//
// Route table:
//
//	GET    /api/v1/problems/{key}            → resolve key or title
//	GET    /api/v1/problems?title=           → lookup by title
//	GET    /api/v1/search?q=&limit=          → substring search
//	GET    /api/v1/companies                 → company list
//	GET    /api/v1/companies/{name}/problems → one company's problems
//	GET    /api/v1/status                    → active snapshot status
//	POST   /api/v1/index/rebuild             → rebuild (admin key, rate limited)
//	GET    /api/v1/index/rebuilds            → rebuild history
//	GET    /api/v1/cache/stats               → search cache counters
//	POST   /api/v1/cache/invalidate          → drop cached searches (admin key)
//	GET    /api/v1/analytics                 → query analytics
//	GET    /health/live, /health/ready       → probes
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/problems/{key}", h.GetProblem)
	mux.HandleFunc("GET /api/v1/problems", h.LookupByTitle)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/companies", h.Companies)
	mux.HandleFunc("GET /api/v1/companies/{name}/problems", h.CompanyProblems)
	mux.HandleFunc("GET /api/v1/status", h.Status)

	var rebuild http.Handler = http.HandlerFunc(h.Rebuild)
	if opts.RebuildLimiter != nil {
		rebuild = middleware.RateLimit(opts.RebuildLimiter, opts.RebuildLimit)(rebuild)
	}
	mux.Handle("POST /api/v1/index/rebuild", admin(opts, rebuild))
	mux.HandleFunc("GET /api/v1/index/rebuilds", h.Rebuilds)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", admin(opts, http.HandlerFunc(h.CacheInvalidate)))

	if opts.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", opts.Analytics.Stats)
	}
	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// Applied inside-out: request → RequestID → CORS → Metrics → Timeout → mux
	var chain http.Handler = mux
	if opts.RequestTimeout > 0 {
		chain = middleware.Timeout(opts.RequestTimeout)(chain)
	}
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)
	return chain
}

// admin guards next with the admin key check when one is configured.
func admin(opts Options, next http.Handler) http.Handler {
	if opts.AdminKeys == nil {
		return next
	}
	return middleware.RequireKey(opts.AdminKeys)(next)
}
