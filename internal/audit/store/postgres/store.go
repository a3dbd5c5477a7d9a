// Package postgres writes audit events to the risk_audit_events table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"authguard/internal/audit/models"
)

// Store implements ports.Sink. Each event is one row; the signal snapshot is kept as
// JSONB and reason codes as a text array.
type Store struct {
	db    *sql.DB
	newID func() uuid.UUID
}

func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	return &Store{db: db, newID: uuid.New}, nil
}

const insertEvent = `
	INSERT INTO risk_audit_events (
		id, request_id, action, decision, risk_level, risk_score, cooldown_sec,
		reason_codes, fingerprint_hash, ip_hash, degraded_rate_limit, signals, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (s *Store) Record(ctx context.Context, event models.Event) error {
	snapshot, err := json.Marshal(event.Signals)
	if err != nil {
		return fmt.Errorf("marshal audit signals: %w", err)
	}
	reasons := event.ReasonCodes
	if reasons == nil {
		reasons = []string{}
	}

	_, err = s.db.ExecContext(ctx, insertEvent,
		s.newID(),
		event.RequestID,
		string(event.Action),
		event.Decision,
		event.RiskLevel,
		event.RiskScore,
		event.CooldownSec,
		pq.Array(reasons),
		event.FingerprintHash,
		event.IPHash,
		event.DegradedRateLimit,
		snapshot,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
