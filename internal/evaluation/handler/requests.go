package handler

import (
	"encoding/json"
	"strings"

	risk "authguard/internal/risk/models"
	"authguard/internal/signals"
	"authguard/pkg/domain"
	dErrors "authguard/pkg/domain-errors"
)

// EvaluateRequest is the HTTP request body for POST /risk/evaluate.
type EvaluateRequest struct {
	Action        string          `json:"action"`
	CaptchaState  string          `json:"captchaState"`
	ClientSignals json.RawMessage `json:"clientSignals"`

	// Parsed values (populated by Validate)
	parsedAction  domain.Action
	parsedCaptcha risk.CaptchaState
	snapshot      signals.Snapshot
}

// Validate parses the request. Action is required and never defaulted; a missing
// captcha state means none. Client signals cannot fail validation: whatever arrives
// is normalized into range.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "action is required")
	}
	action, err := domain.ParseAction(r.Action)
	if err != nil {
		return err
	}
	r.parsedAction = action

	captcha, err := risk.ParseCaptchaState(r.CaptchaState)
	if err != nil {
		return err
	}
	r.parsedCaptcha = captcha

	r.snapshot = signals.NormalizeJSON(r.ClientSignals)
	return nil
}
