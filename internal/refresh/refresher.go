// Package refresh rebuilds the catalog: fetch, parse, build, publish. Rebuilds
// run one at a time; callers arriving while one is in flight share its result.
// A failed rebuild leaves the active snapshot serving.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/parser"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/tracing"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusStale   = "stale"
)

// Result describes one completed rebuild.
type Result struct {
	Version   uint64        `json:"version"`
	Trigger   string        `json:"trigger"`
	Published bool          `json:"published"`
	Problems  int           `json:"problems"`
	Companies int           `json:"companies"`
	Discarded int           `json:"discarded_records"`
	Parse     parser.Stats  `json:"parse"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Coalesced bool          `json:"coalesced"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// CacheInvalidator drops cached query results after a new snapshot lands.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Recorder persists rebuild attempts.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// RebuiltEvent is published after every successful rebuild.
type RebuiltEvent struct {
	Version   uint64    `json:"version"`
	Trigger   string    `json:"trigger"`
	Problems  int       `json:"problems"`
	Companies int       `json:"companies"`
	Discarded int       `json:"discarded_records"`
	BuiltAt   time.Time `json:"built_at"`
}

// RefreshRequest is the payload accepted on the refresh-requests topic.
type RefreshRequest struct {
	Trigger     string `json:"trigger"`
	RequestedBy string `json:"requested_by,omitempty"`
}

type Refresher struct {
	fetcher source.Fetcher
	parser  *parser.Parser
	store   *catalog.Store

	metrics *metrics.Metrics
	events  EventPublisher
	cache   CacheInvalidator
	history Recorder
	tracing bool
	fetchTO time.Duration

	seq    atomic.Uint64
	group  singleflight.Group
	logger *slog.Logger
}

type Option func(*Refresher)

func WithMetrics(m *metrics.Metrics) Option { return func(r *Refresher) { r.metrics = m } }

func WithEvents(p EventPublisher) Option { return func(r *Refresher) { r.events = p } }

func WithCache(c CacheInvalidator) Option { return func(r *Refresher) { r.cache = c } }

func WithHistory(h Recorder) Option { return func(r *Refresher) { r.history = h } }

// WithTracing logs the span tree of every rebuild.
func WithTracing(enabled bool) Option { return func(r *Refresher) { r.tracing = enabled } }

// WithFetchTimeout bounds the fetch stage of each rebuild.
func WithFetchTimeout(d time.Duration) Option { return func(r *Refresher) { r.fetchTO = d } }

func New(fetcher source.Fetcher, p *parser.Parser, store *catalog.Store, opts ...Option) *Refresher {
	r := &Refresher{
		fetcher: fetcher,
		parser:  p,
		store:   store,
		logger:  slog.Default().With("component", "refresher"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rebuild runs a rebuild or joins the one already in flight. The rebuild is
// detached from ctx cancellation so a caller that gives up does not abort
// it for everyone else sharing it.
func (r *Refresher) Rebuild(ctx context.Context, trigger string) (*Result, error) {
	ch := r.group.DoChan("rebuild", func() (any, error) {
		return r.rebuild(context.WithoutCancel(ctx), trigger)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*Result)
		result.Coalesced = res.Shared
		return &result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for rebuild: %w", ctx.Err())
	}
}

func (r *Refresher) rebuild(ctx context.Context, trigger string) (*Result, error) {
	version := r.seq.Add(1)
	started := time.Now()
	log := logger.FromContext(ctx).With("component", "refresher", "version", version, "trigger", trigger)

	ctx, span := tracing.StartSpan(ctx, "index.rebuild", logger.RequestID(ctx))
	span.SetAttr("version", version)
	span.SetAttr("trigger", trigger)
	defer func() {
		span.End()
		r.observeStages(span)
		if r.tracing {
			span.Log(log)
		}
	}()

	result := &Result{Version: version, Trigger: trigger, StartedAt: started.UTC()}

	snap, err := r.produce(ctx, version, result)
	if err != nil {
		result.Duration = time.Since(started)
		span.SetAttr("error", err.Error())
		r.finish(ctx, result, StatusFailure, err)
		log.Error("rebuild failed, keeping active snapshot", "error", err, "duration_ms", result.Duration.Milliseconds())
		return nil, err
	}

	result.Problems = snap.ProblemCount()
	result.Companies = snap.CompanyCount()
	result.Discarded = snap.Discarded
	result.Published = r.store.Publish(snap)
	result.Duration = time.Since(started)

	if !result.Published {
		r.finish(ctx, result, StatusStale, nil)
		log.Warn("discarding stale snapshot", "active_version", r.activeVersion())
		return result, nil
	}

	r.finish(ctx, result, StatusSuccess, nil)
	r.afterPublish(ctx, snap, result)
	log.Info("index rebuilt",
		"problems", result.Problems,
		"companies", result.Companies,
		"discarded", result.Discarded,
		"skipped_files", result.Parse.SkippedFiles,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (r *Refresher) produce(ctx context.Context, version uint64, result *Result) (*catalog.Snapshot, error) {
	fctx, fetchSpan := tracing.StartChildSpan(ctx, "fetch")
	raw, err := resilience.Within(fctx, r.fetchTO, "fetch "+r.fetcher.Name(), r.fetcher.Fetch)
	fetchSpan.SetAttr("source", r.fetcher.Name())
	fetchSpan.End()
	if err != nil {
		return nil, fmt.Errorf("fetching sources: %w", err)
	}

	pctx, parseSpan := tracing.StartChildSpan(ctx, "parse")
	data, stats, err := r.parser.Parse(pctx, raw)
	parseSpan.SetAttr("files", stats.Files)
	parseSpan.End()
	result.Parse = stats
	if err != nil {
		return nil, fmt.Errorf("parsing sources: %w", err)
	}

	_, buildSpan := tracing.StartChildSpan(ctx, "build")
	snap, err := catalog.Build(data, version)
	buildSpan.End()
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Refresher) afterPublish(ctx context.Context, snap *catalog.Snapshot, result *Result) {
	if r.metrics != nil {
		r.metrics.IndexProblems.Set(float64(result.Problems))
		r.metrics.IndexCompanies.Set(float64(result.Companies))
		r.metrics.IndexVersion.Set(float64(result.Version))
		r.metrics.DiscardedRecords.Add(float64(result.Discarded))
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after rebuild failed", "error", err)
		}
	}
	if r.events != nil {
		event := kafka.Event{
			Key: fmt.Sprintf("%d", result.Version),
			Value: RebuiltEvent{
				Version:   result.Version,
				Trigger:   result.Trigger,
				Problems:  result.Problems,
				Companies: result.Companies,
				Discarded: result.Discarded,
				BuiltAt:   snap.BuiltAt,
			},
		}
		if err := r.events.Publish(ctx, event); err != nil {
			r.logger.Warn("publishing rebuilt event failed", "version", result.Version, "error", err)
		}
	}
}

func (r *Refresher) finish(ctx context.Context, result *Result, status string, cause error) {
	if r.metrics != nil {
		r.metrics.RebuildsTotal.WithLabelValues(status).Inc()
		r.metrics.RebuildDuration.WithLabelValues("total").Observe(result.Duration.Seconds())
	}
	if r.history == nil {
		return
	}
	attempt := Attempt{
		Version:      result.Version,
		Trigger:      result.Trigger,
		Status:       status,
		Problems:     result.Problems,
		Companies:    result.Companies,
		Discarded:    result.Discarded,
		Files:        result.Parse.Files,
		SkippedFiles: result.Parse.SkippedFiles,
		StartedAt:    result.StartedAt,
		Duration:     result.Duration,
	}
	if cause != nil {
		attempt.Error = cause.Error()
	}
	if err := r.history.Record(ctx, attempt); err != nil {
		r.logger.Warn("recording rebuild history failed", "version", result.Version, "error", err)
	}
}

func (r *Refresher) observeStages(span *tracing.Span) {
	if r.metrics == nil {
		return
	}
	for stage, d := range span.StageDurations() {
		r.metrics.RebuildDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (r *Refresher) activeVersion() uint64 {
	if snap := r.store.Current(); snap != nil {
		return snap.Version
	}
	return 0
}

// Start rebuilds every interval until ctx is cancelled. Failures are logged;
// the loop keeps going.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Info("periodic refresh disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.logger.Info("periodic refresh started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("periodic refresh stopped")
			return
		case <-ticker.C:
			if _, err := r.Rebuild(ctx, "schedule"); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("scheduled rebuild failed", "error", err)
			}
		}
	}
}

// HandleRefreshRequest is a kafka.MessageHandler for the refresh-requests
// topic. A malformed payload is an error; a failed rebuild is logged and the
// message is still acknowledged.
func (r *Refresher) HandleRefreshRequest(ctx context.Context, key []byte, value []byte) error {
	req, err := kafka.DecodeJSON[RefreshRequest](value)
	if err != nil {
		return err
	}
	trigger := "kafka"
	if req.Trigger != "" {
		trigger = "kafka:" + req.Trigger
	}
	if _, err := r.Rebuild(ctx, trigger); err != nil {
		r.logger.Warn("requested rebuild failed", "trigger", trigger, "requested_by", req.RequestedBy, "error", err)
	}
	return nil
}
