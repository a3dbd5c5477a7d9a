// Package postgres is the legacy rate limit backend: one row per admitted attempt,
// serialized per key with a transaction-scoped advisory lock.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
	"authguard/pkg/platform/sentinel"
)

// Store implements ports.Backend and ports.Resetter on PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database handle.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check records an attempt if it fits the policy. Concurrent checks on the same key
// queue on the advisory lock, so count and insert act as one step.
func (s *Store) Check(ctx context.Context, identifier string, action domain.Action, policy models.Policy) (*models.Verdict, error) {
	now := s.now().UTC()
	cutoff := now.Add(-policy.Window)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rate limit tx: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, models.Key(action, identifier)); err != nil {
		return nil, fmt.Errorf("lock rate limit key: %w: %w", sentinel.ErrUnavailable, err)
	}

	var count int
	var oldest sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(attempted_at)
		FROM rate_limit_attempts
		WHERE identifier = $1 AND action = $2 AND attempted_at > $3
	`, identifier, string(action), cutoff).Scan(&count, &oldest)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w: %w", sentinel.ErrUnavailable, err)
	}

	allowed := count < policy.MaxAttempts
	if allowed {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rate_limit_attempts (identifier, action, attempted_at)
			VALUES ($1, $2, $3)
		`, identifier, string(action), now); err != nil {
			return nil, fmt.Errorf("record attempt: %w: %w", sentinel.ErrUnavailable, err)
		}
		if !oldest.Valid {
			oldest = sql.NullTime{Time: now, Valid: true}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rate limit tx: %w: %w", sentinel.ErrUnavailable, err)
	}

	resetAt := now.Add(policy.Window)
	if oldest.Valid {
		resetAt = oldest.Time.Add(policy.Window)
	}
	return models.NewVerdict(allowed, resetAt.Sub(now)), nil
}

// Reset deletes every recorded attempt for the identifier and action.
func (s *Store) Reset(ctx context.Context, identifier string, action domain.Action) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_attempts WHERE identifier = $1 AND action = $2`,
		identifier, string(action))
	if err != nil {
		return fmt.Errorf("reset attempts: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// DeleteBefore purges attempts older than cutoff and returns how many were removed.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_attempts WHERE attempted_at <= $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge attempts: %w", err)
	}
	return res.RowsAffected()
}
