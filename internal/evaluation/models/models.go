package models

import (
	"strings"
	"time"

	ratelimit "authguard/internal/ratelimit/models"
	risk "authguard/internal/risk/models"
	"authguard/internal/signals"
	"authguard/pkg/domain"
	dErrors "authguard/pkg/domain-errors"
)

// Request is one evaluation. Identifier is opaque to the core; the transport derives
// it. The hashes are recorded for audit only.
type Request struct {
	Identifier      string
	IPHash          string
	FingerprintHash string
	RequestID       string
	Action          domain.Action
	CaptchaState    risk.CaptchaState
	Signals         signals.Snapshot
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Identifier) == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}
	if _, err := domain.ParseAction(string(r.Action)); err != nil {
		return err
	}
	if _, err := risk.ParseCaptchaState(string(r.CaptchaState)); err != nil {
		return err
	}
	return nil
}

// Result pairs the risk evaluation with the rate limit verdict it was scored on.
type Result struct {
	Evaluation  risk.Evaluation
	RateLimit   ratelimit.Verdict
	EvaluatedAt time.Time
}
