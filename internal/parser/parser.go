// Package parser turns raw per-company CSV documents into catalog records.
// Column names vary between sources; see ParseTable for the accepted shapes.
package parser

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/source"
)

const defaultWorkers = 4

type Stats struct {
	Companies    int `json:"companies"`
	Files        int `json:"files"`
	Records      int `json:"records"`
	SkippedFiles int `json:"skipped_files"`
}

type Parser struct {
	workers int
	logger  *slog.Logger
}

func New(workers int) *Parser {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Parser{
		workers: workers,
		logger:  slog.Default().With("component", "parser"),
	}
}

// Parse decodes every document in raw, one company per worker. A document
// that is not valid CSV is skipped and counted; only context cancellation
// fails the whole parse.
func (p *Parser) Parse(ctx context.Context, raw source.Raw) (catalog.Dataset, Stats, error) {
	companies := make([]string, 0, len(raw))
	for name := range raw {
		companies = append(companies, name)
	}
	sort.Strings(companies)

	var (
		mu    sync.Mutex
		data  = make(catalog.Dataset, len(raw))
		stats Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, company := range companies {
		docs := raw[company]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			windows := make(map[recency.Window][]catalog.RawRecord, len(docs))
			var local Stats
			for window, contents := range docs {
				for _, content := range contents {
					local.Files++
					records, err := ParseTable(content)
					if err != nil {
						local.SkippedFiles++
						p.logger.Warn("skipping malformed file", "company", company, "window", window, "error", err)
						continue
					}
					local.Records += len(records)
					windows[window] = append(windows[window], records...)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Files += local.Files
			stats.SkippedFiles += local.SkippedFiles
			stats.Records += local.Records
			if len(windows) > 0 {
				data[company] = windows
				stats.Companies++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}
	p.logger.Info("sources parsed",
		"companies", stats.Companies,
		"files", stats.Files,
		"records", stats.Records,
		"skipped_files", stats.SkippedFiles,
	)
	return data, stats, nil
}
