// Package catalog builds the canonical problem index from parsed company
// sources and holds the active snapshot. A Snapshot is immutable once built;
// readers share it without locking and rebuilds replace it wholesale.
package catalog

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
)

// RawRecord is one row from one company's source for one recency window.
type RawRecord struct {
	Title      string
	Frequency  int
	Difficulty string
	Link       string
}

// Dataset is parser output: company -> window -> records in file order.
type Dataset map[string]map[recency.Window][]RawRecord

// CompanyAggregate folds every record one company reported for a problem.
type CompanyAggregate struct {
	Company      string
	MaxFrequency int
	Windows      recency.Set
	LastSeen     recency.Window
}

// Problem is the canonical entity for one identity key. Companies are sorted
// by MaxFrequency, highest first, ties in discovery order.
type Problem struct {
	Title      string
	Key        string
	Difficulty string
	Link       string
	Companies  []*CompanyAggregate
}

// Snapshot is a fully built index plus its title lookup and counts.
type Snapshot struct {
	Version   uint64
	BuiltAt   time.Time
	Discarded int

	problems  map[string]*Problem
	order     []string
	titles    map[string]string
	companies map[string][]string
	names     []string
}

// Problem returns the problem for an identity key. The returned value is
// shared with every reader and must not be modified.
func (s *Snapshot) Problem(key string) (*Problem, bool) {
	p, ok := s.problems[key]
	return p, ok
}

// Has reports whether key is an identity key in the index.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.problems[key]
	return ok
}

// KeyForTitle resolves a comparison-normalized title to its identity key.
func (s *Snapshot) KeyForTitle(normalized string) (string, bool) {
	key, ok := s.titles[normalized]
	return key, ok
}

// Titles exposes the title lookup for read-only resolution.
func (s *Snapshot) Titles() map[string]string {
	return s.titles
}

// Each visits problems in discovery order until fn returns false.
func (s *Snapshot) Each(fn func(p *Problem) bool) {
	for _, key := range s.order {
		if !fn(s.problems[key]) {
			return
		}
	}
}

// ProblemCount is the number of distinct identity keys.
func (s *Snapshot) ProblemCount() int {
	return len(s.order)
}

// CompanyCount is the number of distinct companies that contributed at
// least one record.
func (s *Snapshot) CompanyCount() int {
	return len(s.names)
}

// Companies returns company names in ascending order.
func (s *Snapshot) Companies() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// CompanyKeys returns the identity keys a company reported, ordered by that
// company's frequency (highest first, ties in discovery order).
func (s *Snapshot) CompanyKeys(company string) ([]string, bool) {
	keys, ok := s.companies[company]
	return keys, ok
}

// Aggregate returns the company's aggregate on p, if any.
func (p *Problem) Aggregate(company string) (*CompanyAggregate, bool) {
	for _, agg := range p.Companies {
		if agg.Company == company {
			return agg, true
		}
	}
	return nil, false
}
