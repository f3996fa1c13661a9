// Package source fetches raw per-company, per-window tabular text from a
// local directory tree, a zip archive served over HTTP, or PostgreSQL.
package source

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/resilience"
)

// Raw maps company -> window -> file contents. Several files of one company
// can map to the same window ("thirty-days.csv" and "30-days.csv"); each is
// kept as its own document, in fetch order.
type Raw map[string]map[recency.Window][]string

// Files counts the documents in r.
func (r Raw) Files() int {
	n := 0
	for _, windows := range r {
		for _, docs := range windows {
			n += len(docs)
		}
	}
	return n
}

func (r Raw) add(company string, window recency.Window, content string) {
	company = strings.TrimSpace(company)
	if company == "" {
		return
	}
	windows, ok := r[company]
	if !ok {
		windows = make(map[recency.Window][]string)
		r[company] = windows
	}
	windows[window] = append(windows[window], content)
}

// Fetcher retrieves the complete raw dataset. Implementations own their
// timeouts; an empty result is reported as ErrSourceUnavailable.
type Fetcher interface {
	Fetch(ctx context.Context) (Raw, error)
	Name() string
}

// Guarded is implemented by fetchers that sit behind a circuit breaker.
type Guarded interface {
	Breaker() *resilience.CircuitBreaker
}

// New builds the fetcher selected by cfg.Type. db is only used by the
// postgres source and may be nil otherwise.
func New(cfg config.SourceConfig, db *postgres.Client) (Fetcher, error) {
	switch cfg.Type {
	case config.SourceDir:
		return NewDir(cfg.Dir), nil
	case config.SourceArchive:
		return NewArchive(cfg.ArchiveURL, cfg.Timeout, cfg.RetryAttempts), nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("source type %q requires postgres: %w", cfg.Type, apperrors.ErrInvalidInput)
		}
		return NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("unknown source type %q: %w", cfg.Type, apperrors.ErrInvalidInput)
	}
}

// isTable reports whether name looks like a CSV document.
func isTable(name string) bool {
	return strings.EqualFold(path.Ext(name), ".csv")
}

func stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

func nonEmpty(name string, raw Raw) (Raw, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s source: no company files found: %w", name, apperrors.ErrSourceUnavailable)
	}
	return raw, nil
}
