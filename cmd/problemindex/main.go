// Command problemindex serves the company interview-problem index.
//
// It fetches per-company problem lists from the configured source, builds
// the canonical index, and serves lookups, search and company views over
// HTTP and (optionally) JSON-over-TCP RPC. PostgreSQL, Redis and Kafka are
// optional: without them the service runs with in-memory analytics, no
// search cache, no rebuild history and no events.
//
// Usage:
//
//	go run ./cmd/problemindex [-config configs/development.yaml] [-env .env]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/admin"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/rpcapi"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/parser"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	if _, err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		*configPath = ""
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting problem index",
		"port", cfg.Server.Port,
		"source", cfg.Source.Type,
		"postgres", cfg.Postgres.Enabled(),
		"redis", cfg.Redis.Enabled(),
		"kafka", cfg.Kafka.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()
	if cfg.Metrics.Enabled {
		go func() {
			live := map[string]http.Handler{"GET /health/live": checker.LiveHandler()}
			if err := metrics.ListenAndServe(ctx, cfg.Metrics.Port, live); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	// PostgreSQL: rebuild history, analytics snapshots, and optionally the source.
	var (
		db            *postgres.Client
		history       *refresh.History
		analyticsRepo *aggregator.Store
	)
	if cfg.Postgres.Enabled() {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			if cfg.Source.Type == config.SourcePostgres {
				slog.Error("failed to connect to postgres", "error", err)
				os.Exit(1)
			}
			slog.Warn("postgres unavailable, history and analytics persistence disabled", "error", err)
		} else {
			defer db.Close()
			history = refresh.NewHistory(db)
			analyticsRepo = aggregator.NewStore(db)
			if err := history.EnsureSchema(ctx); err != nil {
				slog.Error("failed to ensure history schema", "error", err)
				os.Exit(1)
			}
			if err := analyticsRepo.EnsureSchema(ctx); err != nil {
				slog.Error("failed to ensure analytics schema", "error", err)
				os.Exit(1)
			}
			checker.RegisterOptional("postgres", health.PingCheck(db.Health))
			slog.Info("connected to postgres", "host", cfg.Postgres.Host)
		}
	}

	var adminKeys middleware.KeyValidator
	if cfg.Admin.RequireKey {
		validators := admin.Any{}
		if static := admin.NewStatic(cfg.Admin.Tokens); static.Len() > 0 {
			validators = append(validators, static)
		}
		if db != nil {
			keyStore := admin.NewStore(db)
			if err := keyStore.EnsureSchema(ctx); err != nil {
				slog.Error("failed to ensure admin key schema", "error", err)
				os.Exit(1)
			}
			validators = append(validators, keyStore)
		}
		adminKeys = validators
		slog.Info("admin key required for mutating endpoints", "validators", len(validators))
	}

	fetcher, err := source.New(cfg.Source, db)
	if err != nil {
		slog.Error("failed to create source", "error", err)
		os.Exit(1)
	}
	if guarded, ok := fetcher.(source.Guarded); ok {
		breaker := guarded.Breaker()
		breaker.OnStateChange(func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		})
		checker.RegisterOptional("source-breaker", health.BreakerCheck(func() string {
			return breaker.GetState().String()
		}))
	}

	store := catalog.NewStore()
	engine := query.New(store)
	checker.Register("index", health.IndexCheck(func() (bool, uint64) {
		st := engine.Status()
		return st.Ready, st.Version
	}))

	// Redis: versioned search cache.
	var searchCache *cache.SearchCache
	if cfg.Redis.Enabled() {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			searchCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	refreshOpts := []refresh.Option{
		refresh.WithMetrics(m),
		refresh.WithTracing(cfg.Tracing.Enabled),
		refresh.WithFetchTimeout(cfg.Refresh.FetchTimeout),
	}
	if searchCache != nil {
		refreshOpts = append(refreshOpts, refresh.WithCache(searchCache))
	}
	if history != nil {
		refreshOpts = append(refreshOpts, refresh.WithHistory(history))
	}

	// Analytics: in-process when Kafka is off, via the events topic when on.
	agg := analytics.NewAggregator()
	var tracker analytics.Tracker = agg
	var persisted analytics.SnapshotLoader
	if analyticsRepo != nil {
		persisted = analyticsRepo
		analyticsRepo.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
	}

	var consumers []*kafka.Consumer
	if cfg.Kafka.Enabled() {
		rebuilt := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuilt)
		defer rebuilt.Close()
		refreshOpts = append(refreshOpts, refresh.WithEvents(rebuilt))

		events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer events.Close()
		collector := analytics.NewCollector(events,
			cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		consumers = append(consumers,
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg)))
		slog.Info("kafka enabled",
			"rebuilt_topic", rebuilt.Topic(),
			"analytics_topic", events.Topic(),
			"refresh_topic", cfg.Kafka.Topics.RefreshRequests,
		)
	}

	refresher := refresh.New(fetcher, parser.New(cfg.Source.ParseWorkers), store, refreshOpts...)
	if cfg.Kafka.Enabled() {
		consumers = append(consumers,
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RefreshRequests, refresher.HandleRefreshRequest))
	}
	for _, c := range consumers {
		go func(c *kafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				slog.Error("kafka consumer error", "topic", c.Topic(), "error", err)
			}
		}(c)
	}

	if cfg.Refresh.OnStartup {
		go func() {
			if _, err := refresher.Rebuild(ctx, "startup"); err != nil {
				slog.Error("startup rebuild failed", "error", err)
			}
		}()
	}
	go refresher.Start(ctx, cfg.Refresh.Interval)

	handlerOpts := []handler.Option{
		handler.WithRebuilder(refresher),
		handler.WithTracker(tracker),
		handler.WithMetrics(m),
	}
	if searchCache != nil {
		handlerOpts = append(handlerOpts, handler.WithCache(searchCache))
	}
	if history != nil {
		handlerOpts = append(handlerOpts, handler.WithHistory(history))
	}
	h := handler.New(engine, cfg.Search, handlerOpts...)

	limiter := ratelimit.New(cfg.RateLimit.Window)
	defer limiter.Close()

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(h, router.Options{
			Analytics:      analytics.NewHandler(agg, persisted),
			AdminKeys:      adminKeys,
			Health:         checker,
			Metrics:        m,
			RebuildLimiter: limiter,
			RebuildLimit:   cfg.RateLimit.RebuildsPerWindow,
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.RPC.Enabled {
		rpcServer := rpcapi.NewServer(rpcapi.NewService(engine, refresher, cfg.Search), cfg.Server.WriteTimeout)
		go func() {
			if err := rpcServer.Serve(fmt.Sprintf(":%d", cfg.RPC.Port)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("problem index listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("problem index stopped")
}
