package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
)

// builder holds all intermediate state for one build. Nothing in it is
// reachable by readers until Build returns the finished Snapshot.
type builder struct {
	problems  map[string]*Problem
	order     []string
	titles    map[string]string
	slots     map[string]map[string]int
	companies map[string][]string
	discarded int
}

// Build folds a dataset into a new Snapshot stamped with version.
//
// Companies are processed in ascending name order, windows in recency order
// (labels outside the fixed order last) and records in file order, so the
// first title seen for an identity key, and therefore its display form, is
// deterministic. Build fails with ErrNoData when no record yields a problem.
func Build(data Dataset, version uint64) (*Snapshot, error) {
	b := &builder{
		problems:  make(map[string]*Problem),
		titles:    make(map[string]string),
		slots:     make(map[string]map[string]int),
		companies: make(map[string][]string),
	}

	for _, company := range sortedCompanies(data) {
		name := strings.TrimSpace(company)
		if name == "" {
			continue
		}
		windows := data[company]
		for _, window := range sortedWindows(windows) {
			for _, rec := range windows[window] {
				b.add(name, window, rec)
			}
		}
	}

	if len(b.order) == 0 {
		return nil, fmt.Errorf("building index from %d companies (%d records discarded): %w",
			len(data), b.discarded, apperrors.ErrNoData)
	}
	return b.finish(version), nil
}

func (b *builder) add(company string, window recency.Window, rec RawRecord) {
	key := normalize.IdentityKey(rec.Title)
	if key == "" {
		b.discarded++
		return
	}

	p, exists := b.problems[key]
	if !exists {
		p = &Problem{
			Title: strings.TrimSpace(rec.Title),
			Key:   key,
		}
		b.problems[key] = p
		b.order = append(b.order, key)
		b.titles[normalize.ForComparison(rec.Title)] = key
		b.slots[key] = make(map[string]int)
	}
	if p.Difficulty == "" {
		p.Difficulty = strings.TrimSpace(rec.Difficulty)
	}
	if p.Link == "" {
		p.Link = strings.TrimSpace(rec.Link)
	}

	slot, seen := b.slots[key][company]
	if !seen {
		slot = len(p.Companies)
		b.slots[key][company] = slot
		p.Companies = append(p.Companies, &CompanyAggregate{
			Company: company,
			Windows: recency.NewSet(),
		})
		b.companies[company] = append(b.companies[company], key)
	}

	agg := p.Companies[slot]
	if rec.Frequency > agg.MaxFrequency {
		agg.MaxFrequency = rec.Frequency
	}
	agg.Windows[window] = struct{}{}
	agg.LastSeen = recency.Tightest(agg.Windows)
}

func (b *builder) finish(version uint64) *Snapshot {
	for _, key := range b.order {
		companies := b.problems[key].Companies
		sort.SliceStable(companies, func(i, j int) bool {
			return companies[i].MaxFrequency > companies[j].MaxFrequency
		})
	}

	names := make([]string, 0, len(b.companies))
	for company, keys := range b.companies {
		names = append(names, company)
		freq := make(map[string]int, len(keys))
		for _, key := range keys {
			if agg, ok := b.problems[key].Aggregate(company); ok {
				freq[key] = agg.MaxFrequency
			}
		}
		sort.SliceStable(keys, func(i, j int) bool {
			return freq[keys[i]] > freq[keys[j]]
		})
	}
	sort.Strings(names)

	return &Snapshot{
		Version:   version,
		BuiltAt:   time.Now().UTC(),
		Discarded: b.discarded,
		problems:  b.problems,
		order:     b.order,
		titles:    b.titles,
		companies: b.companies,
		names:     names,
	}
}

func sortedCompanies(data Dataset) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedWindows(windows map[recency.Window][]RawRecord) []recency.Window {
	out := make([]recency.Window, 0, len(windows))
	for w := range windows {
		out = append(out, w)
	}
	recency.SortWindows(out)
	return out
}
