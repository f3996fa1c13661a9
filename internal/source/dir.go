package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
)

// Dir reads <root>/<Company>/<window>.csv.
type Dir struct {
	root   string
	logger *slog.Logger
}

func NewDir(root string) *Dir {
	return &Dir{
		root:   root,
		logger: slog.Default().With("component", "source-dir"),
	}
}

func (d *Dir) Name() string { return "dir" }

func (d *Dir) Fetch(ctx context.Context) (Raw, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("reading source root %s: %v: %w", d.root, err, apperrors.ErrSourceUnavailable)
	}
	raw := make(Raw)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		company := entry.Name()
		files, err := os.ReadDir(filepath.Join(d.root, company))
		if err != nil {
			d.logger.Warn("skipping unreadable company directory", "company", company, "error", err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || !isTable(f.Name()) {
				continue
			}
			content, err := os.ReadFile(filepath.Join(d.root, company, f.Name()))
			if err != nil {
				d.logger.Warn("skipping unreadable file", "company", company, "file", f.Name(), "error", err)
				continue
			}
			raw.add(company, recency.LabelForFile(stem(f.Name())), string(content))
		}
	}
	d.logger.Debug("source read", "root", d.root, "companies", len(raw), "files", raw.Files())
	return nonEmpty(d.Name(), raw)
}
