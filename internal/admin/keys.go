// Package admin validates the keys that guard mutating endpoints (index
// rebuilds, cache invalidation). Keys are stored only as SHA-256 digests,
// either in the admin_keys table or as static tokens from configuration.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/postgres"
)

var (
	ErrInvalidKey = fmt.Errorf("invalid admin key: %w", apperrors.ErrUnauthorized)
	ErrExpiredKey = fmt.Errorf("admin key expired: %w", apperrors.ErrUnauthorized)
)

type Key struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator resolves a presented raw key to its owner name.
type Validator interface {
	Validate(ctx context.Context, raw string) (string, error)
}

// Static accepts a fixed set of tokens.
type Static struct {
	digests [][sha256.Size]byte
}

func NewStatic(tokens []string) *Static {
	s := &Static{}
	for _, t := range tokens {
		if t != "" {
			s.digests = append(s.digests, sha256.Sum256([]byte(t)))
		}
	}
	return s
}

func (s *Static) Len() int { return len(s.digests) }

func (s *Static) Validate(_ context.Context, raw string) (string, error) {
	d := sha256.Sum256([]byte(raw))
	for i := range s.digests {
		if subtle.ConstantTimeCompare(d[:], s.digests[i][:]) == 1 {
			return fmt.Sprintf("static-%d", i+1), nil
		}
	}
	return "", ErrInvalidKey
}

// Any tries each validator in order and accepts the first match.
type Any []Validator

func (a Any) Validate(ctx context.Context, raw string) (string, error) {
	for _, v := range a {
		name, err := v.Validate(ctx, raw)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, apperrors.ErrUnauthorized) {
			return "", err
		}
	}
	return "", ErrInvalidKey
}

// Store keeps admin keys in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "admin-keys"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, "admin_keys",
		`CREATE TABLE IF NOT EXISTS admin_keys (
			id         BIGSERIAL PRIMARY KEY,
			key_hash   TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			is_active  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ
		)`,
	)
}

func (s *Store) Validate(ctx context.Context, raw string) (string, error) {
	var (
		name      string
		expiresAt sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT name, expires_at FROM admin_keys WHERE key_hash = $1 AND is_active = TRUE`,
		HashKey(raw),
	).Scan(&name, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("querying admin key: %w", err)
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return "", ErrExpiredKey
	}
	return name, nil
}

// Create stores a new key and returns the raw value, which cannot be
// recovered later.
func (s *Store) Create(ctx context.Context, name string, expiresAt *time.Time) (string, error) {
	raw, err := generateRawKey()
	if err != nil {
		return "", err
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO admin_keys (key_hash, name, expires_at) VALUES ($1, $2, $3)`,
		HashKey(raw), name, expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating admin key: %w", err)
	}
	s.logger.Info("admin key created", "name", name)
	return raw, nil
}

func (s *Store) Revoke(ctx context.Context, raw string) error {
	result, err := s.db.DB.ExecContext(ctx,
		`UPDATE admin_keys SET is_active = FALSE WHERE key_hash = $1 AND is_active = TRUE`,
		HashKey(raw),
	)
	if err != nil {
		return fmt.Errorf("revoking admin key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}
	s.logger.Info("admin key revoked")
	return nil
}

// List returns active keys, newest first.
func (s *Store) List(ctx context.Context) ([]Key, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, created_at, expires_at FROM admin_keys WHERE is_active = TRUE ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing admin keys: %w", err)
	}
	defer rows.Close()

	keys := make([]Key, 0)
	for rows.Next() {
		var (
			k         Key
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning admin key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the hex SHA-256 digest of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating admin key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
