// Package ports declares where audit events are written.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks Sink

import (
	"context"

	"authguard/internal/audit/models"
)

// Sink persists a single audit event.
type Sink interface {
	Record(ctx context.Context, event models.Event) error
}
