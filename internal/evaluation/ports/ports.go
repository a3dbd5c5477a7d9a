// Package ports declares the collaborators of the evaluation service.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks RateLimiter,Auditor

import (
	"context"

	audit "authguard/internal/audit/models"
	ratelimit "authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
)

// RateLimiter answers whether identifier may attempt action. It never fails; an
// unreachable store yields a degraded verdict.
type RateLimiter interface {
	Check(ctx context.Context, identifier string, action domain.Action) *ratelimit.Verdict
}

// Auditor accepts an event for best-effort recording. It must not block.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}
