package models

import (
	"strings"

	ratelimit "authguard/internal/ratelimit/models"
	"authguard/internal/signals"
	"authguard/pkg/domain"
	dErrors "authguard/pkg/domain-errors"
)

// CaptchaState is the client's claim about the slider challenge. It is a hint.
type CaptchaState string

const (
	CaptchaNone         CaptchaState = "none"
	CaptchaSliderPassed CaptchaState = "slider_passed"
	CaptchaSliderFailed CaptchaState = "slider_failed"
)

// ParseCaptchaState accepts the three known states; empty means none.
func ParseCaptchaState(s string) (CaptchaState, error) {
	switch c := CaptchaState(strings.TrimSpace(s)); c {
	case "":
		return CaptchaNone, nil
	case CaptchaNone, CaptchaSliderPassed, CaptchaSliderFailed:
		return c, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "captchaState must be one of: none, slider_passed, slider_failed")
	}
}

// Level is the severity band of a risk score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Decision is the enforcement outcome returned to the caller.
type Decision string

const (
	DecisionAllow     Decision = "allow"
	DecisionChallenge Decision = "challenge"
	DecisionThrottle  Decision = "throttle"
	DecisionDeny      Decision = "deny"
)

// ChallengeType tells the client which challenge to render.
type ChallengeType string

const (
	ChallengeNone   ChallengeType = "none"
	ChallengeSlider ChallengeType = "slider"
)

// Reason codes, in the order the scorer can emit them.
const (
	ReasonTooFast             = "too_fast"
	ReasonFastSubmit          = "fast_submit"
	ReasonLowBehaviorScore    = "low_behavior_score"
	ReasonWeakBehaviorScore   = "weak_behavior_score"
	ReasonLowInputSwitch      = "low_input_switch"
	ReasonNoMouseMovement     = "no_mouse_movement"
	ReasonUnnaturalMousePath  = "unnatural_mouse_path"
	ReasonRoboticInputPattern = "robotic_input_pattern"
	ReasonNoFocusActivity     = "no_focus_activity"
	ReasonDragTooFast         = "drag_too_fast"
	ReasonLowSliderQuality    = "low_slider_quality"
	ReasonWeakSliderQuality   = "weak_slider_quality"
	ReasonIncompleteDrag      = "incomplete_drag"
	ReasonChallengeFailed     = "challenge_failed"
	ReasonChallengePassed     = "challenge_passed"
	ReasonRateLimitDegraded   = "rate_limit_degraded"
	ReasonRateLimited         = "rate_limited"
)

// Input is everything the engine scores.
type Input struct {
	Action       domain.Action
	CaptchaState CaptchaState
	Snapshot     signals.Snapshot
	RateLimit    ratelimit.Verdict
}

// Evaluation is the engine's output. It is built once and not mutated.
type Evaluation struct {
	Score         int
	Level         Level
	Decision      Decision
	CooldownSec   int
	ChallengeType ChallengeType
	ReasonCodes   []string
}
