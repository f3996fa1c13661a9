// Package query answers read-only questions against the active catalog
// snapshot: lookups by identity key or title with optional recency
// filtering, substring search, per-company views and status.
package query

import (
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
)

// SnapshotSource yields the snapshot queries run against. catalog.Store
// satisfies it.
type SnapshotSource interface {
	Current() *catalog.Snapshot
}

type CompanyView struct {
	Company      string           `json:"company"`
	MaxFrequency int              `json:"max_frequency"`
	WindowsSeen  []recency.Window `json:"windows_seen,omitempty"`
	LastSeen     recency.Window   `json:"last_seen"`
}

type ProblemView struct {
	Title      string         `json:"title"`
	Key        string         `json:"key"`
	Difficulty string         `json:"difficulty,omitempty"`
	Link       string         `json:"link,omitempty"`
	Window     recency.Window `json:"window,omitempty"`
	Companies  []CompanyView  `json:"companies"`
}

type SearchHit struct {
	Title        string `json:"title"`
	Key          string `json:"key"`
	CompanyCount int    `json:"company_count"`
}

type Status struct {
	Ready          bool       `json:"ready"`
	Version        uint64     `json:"version"`
	LastRebuiltAt  *time.Time `json:"last_rebuilt_at,omitempty"`
	TotalProblems  int        `json:"total_problems"`
	TotalCompanies int        `json:"total_companies"`
	Discarded      int        `json:"discarded_records"`
}

type CompanySummary struct {
	Name         string `json:"name"`
	ProblemCount int    `json:"problem_count"`
}

type CompanyProblem struct {
	Title        string         `json:"title"`
	Key          string         `json:"key"`
	Difficulty   string         `json:"difficulty,omitempty"`
	MaxFrequency int            `json:"max_frequency"`
	LastSeen     recency.Window `json:"last_seen"`
}

type Engine struct {
	source SnapshotSource
	logger *slog.Logger
}

func New(source SnapshotSource) *Engine {
	return &Engine{
		source: source,
		logger: slog.Default().With("component", "query-engine"),
	}
}

// Snapshot returns the snapshot currently served, or nil before the first
// successful build.
func (e *Engine) Snapshot() *catalog.Snapshot {
	return e.source.Current()
}

// LookupByIdentity canonicalizes key and returns the problem projected onto
// window. An empty window returns the full problem. The bool is false when
// the key is unknown or no snapshot is active.
func (e *Engine) LookupByIdentity(key, window string) (*ProblemView, bool) {
	snap := e.source.Current()
	if snap == nil {
		return nil, false
	}
	return lookup(snap, normalize.CanonicalKey(key), window)
}

// LookupByTitle resolves a free-text title through the title lookup.
func (e *Engine) LookupByTitle(title, window string) (*ProblemView, bool) {
	snap := e.source.Current()
	if snap == nil {
		return nil, false
	}
	key, ok := snap.KeyForTitle(normalize.ForComparison(title))
	if !ok {
		return nil, false
	}
	return lookup(snap, key, window)
}

// Resolve accepts either a slug-like key or a free-text title.
func (e *Engine) Resolve(input, window string) (*ProblemView, bool) {
	snap := e.source.Current()
	if snap == nil {
		return nil, false
	}
	key, ok := normalize.BestMatch(input, snap.Titles(), snap.Has)
	if !ok {
		return nil, false
	}
	return lookup(snap, key, window)
}

// Search returns up to limit problems, in index order, whose
// comparison-normalized title or identity key contains the normalized query.
// Callers clamp limit; a non-positive limit or blank query yields no hits.
func (e *Engine) Search(query string, limit int) []SearchHit {
	hits := make([]SearchHit, 0)
	snap := e.source.Current()
	needle := normalize.ForComparison(query)
	if snap == nil || needle == "" || limit <= 0 {
		return hits
	}
	snap.Each(func(p *catalog.Problem) bool {
		if strings.Contains(normalize.ForComparison(p.Title), needle) || strings.Contains(p.Key, needle) {
			hits = append(hits, SearchHit{
				Title:        displayTitle(p),
				Key:          p.Key,
				CompanyCount: len(p.Companies),
			})
		}
		return len(hits) < limit
	})
	e.logger.Debug("search executed", "query", needle, "limit", limit, "results", len(hits))
	return hits
}

func (e *Engine) Status() Status {
	snap := e.source.Current()
	if snap == nil {
		return Status{}
	}
	builtAt := snap.BuiltAt
	return Status{
		Ready:          true,
		Version:        snap.Version,
		LastRebuiltAt:  &builtAt,
		TotalProblems:  snap.ProblemCount(),
		TotalCompanies: snap.CompanyCount(),
		Discarded:      snap.Discarded,
	}
}

// Companies lists every company in the snapshot with its problem count.
func (e *Engine) Companies() []CompanySummary {
	out := make([]CompanySummary, 0)
	snap := e.source.Current()
	if snap == nil {
		return out
	}
	for _, name := range snap.Companies() {
		keys, _ := snap.CompanyKeys(name)
		out = append(out, CompanySummary{Name: name, ProblemCount: len(keys)})
	}
	return out
}

// CompanyProblems lists one company's problems ordered by that company's
// frequency, optionally filtered to window. A non-positive limit returns all
// matches. The bool is false for an unknown company.
func (e *Engine) CompanyProblems(company, window string, limit int) ([]CompanyProblem, bool) {
	snap := e.source.Current()
	if snap == nil {
		return nil, false
	}
	keys, ok := snap.CompanyKeys(company)
	if !ok {
		return nil, false
	}
	var included recency.Set
	if window != "" {
		included = recency.Included(recency.ResolveToken(window))
	}
	out := make([]CompanyProblem, 0)
	for _, key := range keys {
		p, _ := snap.Problem(key)
		agg, ok := p.Aggregate(company)
		if !ok {
			continue
		}
		if included != nil && !visible(agg, included) {
			continue
		}
		out = append(out, CompanyProblem{
			Title:        displayTitle(p),
			Key:          p.Key,
			Difficulty:   p.Difficulty,
			MaxFrequency: agg.MaxFrequency,
			LastSeen:     agg.LastSeen,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, true
}

func lookup(snap *catalog.Snapshot, key, window string) (*ProblemView, bool) {
	p, ok := snap.Problem(key)
	if !ok {
		return nil, false
	}
	if window == "" {
		return fullView(p), true
	}
	return windowedView(p, recency.ResolveToken(window)), true
}

func fullView(p *catalog.Problem) *ProblemView {
	view := &ProblemView{
		Title:      displayTitle(p),
		Key:        p.Key,
		Difficulty: p.Difficulty,
		Link:       p.Link,
		Companies:  make([]CompanyView, 0, len(p.Companies)),
	}
	for _, agg := range p.Companies {
		view.Companies = append(view.Companies, CompanyView{
			Company:      agg.Company,
			MaxFrequency: agg.MaxFrequency,
			WindowsSeen:  agg.Windows.Sorted(),
			LastSeen:     agg.LastSeen,
		})
	}
	return view
}

func windowedView(p *catalog.Problem, window recency.Window) *ProblemView {
	included := recency.Included(window)
	view := &ProblemView{
		Title:      displayTitle(p),
		Key:        p.Key,
		Difficulty: p.Difficulty,
		Link:       p.Link,
		Window:     window,
		Companies:  make([]CompanyView, 0),
	}
	for _, agg := range p.Companies {
		if !visible(agg, included) {
			continue
		}
		view.Companies = append(view.Companies, CompanyView{
			Company:      agg.Company,
			MaxFrequency: agg.MaxFrequency,
			LastSeen:     agg.LastSeen,
		})
	}
	return view
}

// visible reports whether agg belongs in a windowed answer. Pairs seen only
// under labels outside the fixed order (180-days) carry the broadest
// lastSeen and so surface in the broadest query alone.
func visible(agg *catalog.CompanyAggregate, included recency.Set) bool {
	return agg.Windows.Intersects(included) || included.Has(agg.LastSeen)
}

func displayTitle(p *catalog.Problem) string {
	if p.Title != "" {
		return p.Title
	}
	return normalize.DisplayTitle(p.Key)
}
