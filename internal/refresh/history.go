package refresh

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/postgres"
)

// historyRetention caps how many rows index_rebuilds keeps.
const historyRetention = 500

// Attempt is one row of rebuild history.
type Attempt struct {
	ID           int64         `json:"id"`
	Version      uint64        `json:"version"`
	Trigger      string        `json:"trigger"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
	Problems     int           `json:"problems"`
	Companies    int           `json:"companies"`
	Discarded    int           `json:"discarded_records"`
	Files        int           `json:"files"`
	SkippedFiles int           `json:"skipped_files"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// History stores rebuild attempts in PostgreSQL.
type History struct {
	db *postgres.Client
}

func NewHistory(db *postgres.Client) *History {
	return &History{db: db}
}

func (h *History) EnsureSchema(ctx context.Context) error {
	return h.db.Migrate(ctx, "index_rebuilds",
		`CREATE TABLE IF NOT EXISTS index_rebuilds (
			id            BIGSERIAL PRIMARY KEY,
			version       BIGINT NOT NULL,
			trigger       TEXT NOT NULL,
			status        TEXT NOT NULL,
			error         TEXT,
			problems      INTEGER NOT NULL DEFAULT 0,
			companies     INTEGER NOT NULL DEFAULT 0,
			discarded     INTEGER NOT NULL DEFAULT 0,
			files         INTEGER NOT NULL DEFAULT 0,
			skipped_files INTEGER NOT NULL DEFAULT 0,
			started_at    TIMESTAMPTZ NOT NULL,
			duration_ms   BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS index_rebuilds_started_at ON index_rebuilds (started_at DESC)`,
	)
}

// Record inserts a and prunes rows beyond the retention window in the same
// transaction.
func (h *History) Record(ctx context.Context, a Attempt) error {
	return h.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO index_rebuilds
			(version, trigger, status, error, problems, companies, discarded, files, skipped_files, started_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.Version, a.Trigger, a.Status, nullableString(a.Error), a.Problems, a.Companies,
			a.Discarded, a.Files, a.SkippedFiles, a.StartedAt, a.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("inserting rebuild attempt: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM index_rebuilds WHERE id <= (SELECT MAX(id) FROM index_rebuilds) - $1`,
			historyRetention)
		if err != nil {
			return fmt.Errorf("pruning rebuild history: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit attempts, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := h.db.DB.QueryContext(ctx,
		`SELECT id, version, trigger, status, COALESCE(error, ''), problems, companies, discarded,
			files, skipped_files, started_at, duration_ms
		FROM index_rebuilds ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying rebuild history: %w", err)
	}
	defer rows.Close()

	attempts := make([]Attempt, 0)
	for rows.Next() {
		var a Attempt
		var durationMs int64
		if err := rows.Scan(&a.ID, &a.Version, &a.Trigger, &a.Status, &a.Error, &a.Problems,
			&a.Companies, &a.Discarded, &a.Files, &a.SkippedFiles, &a.StartedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning rebuild history: %w", err)
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
