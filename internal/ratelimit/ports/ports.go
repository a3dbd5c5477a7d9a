// Package ports declares the counter backends the rate limiter chains together.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks Backend,Resetter

import (
	"context"

	"authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
)

// Backend records one attempt and reports whether it fits the policy, atomically.
// Two concurrent calls at the boundary must not both be admitted.
type Backend interface {
	Check(ctx context.Context, identifier string, action domain.Action, policy models.Policy) (*models.Verdict, error)
}

// Resetter is implemented by backends that can forget an identifier's attempts.
type Resetter interface {
	Reset(ctx context.Context, identifier string, action domain.Action) error
}
