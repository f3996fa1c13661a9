package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/postgres"
)

// Postgres reads sources from the company_sources table. window_label holds
// either a canonical label or a file stem.
type Postgres struct {
	db *postgres.Client
}

func NewPostgres(db *postgres.Client) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Fetch(ctx context.Context) (Raw, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT company, window_label, content FROM company_sources ORDER BY company, window_label`)
	if err != nil {
		return nil, fmt.Errorf("querying company_sources: %v: %w", err, apperrors.ErrSourceUnavailable)
	}
	defer rows.Close()

	raw := make(Raw)
	for rows.Next() {
		var company, label, content string
		if err := rows.Scan(&company, &label, &content); err != nil {
			return nil, fmt.Errorf("scanning company_sources row: %w", err)
		}
		raw.add(company, recency.LabelForFile(label), content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating company_sources: %w", err)
	}
	return nonEmpty(p.Name(), raw)
}
