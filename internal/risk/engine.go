// Package risk scores an authentication attempt and decides how to enforce it.
//
// Evaluate is pure: the same input always yields the same Evaluation, and nothing
// outside the input is read.
package risk

import (
	"authguard/internal/risk/models"
	"authguard/internal/signals"
	"authguard/pkg/domain"
)

// Level upper bounds (inclusive).
const (
	maxLowScore    = 24
	maxMediumScore = 49
	maxHighScore   = 74
)

// scorer accumulates points and the reason code for each contribution, in order.
type scorer struct {
	total   int
	reasons []string
}

func (s *scorer) add(points int, reason string) {
	s.total += points
	if reason != "" {
		s.reasons = append(s.reasons, reason)
	}
}

// Evaluate scores in and applies the decision policy.
func Evaluate(in models.Input) models.Evaluation {
	snap := in.Snapshot.Bounded()
	sc := &scorer{reasons: []string{}}

	if in.Action == domain.ActionRegister {
		sc.add(8, "")
	}

	switch {
	case snap.ElapsedMs < 1200:
		sc.add(25, models.ReasonTooFast)
	case snap.ElapsedMs < 2200:
		sc.add(10, models.ReasonFastSubmit)
	}

	switch {
	case snap.AntiBotScore < 30:
		sc.add(30, models.ReasonLowBehaviorScore)
	case snap.AntiBotScore < 50:
		sc.add(18, models.ReasonWeakBehaviorScore)
	case snap.AntiBotScore > 85:
		sc.add(-8, "")
	}

	if snap.InputSwitchCount <= 1 {
		sc.add(12, models.ReasonLowInputSwitch)
	}
	if !snap.HasMouseMovement {
		sc.add(10, models.ReasonNoMouseMovement)
	}
	if !snap.HasNaturalMousePath {
		sc.add(8, models.ReasonUnnaturalMousePath)
	}
	if !snap.HasNaturalInputPattern {
		sc.add(10, models.ReasonRoboticInputPattern)
	}
	if !snap.HasFocusActivity {
		sc.add(6, models.ReasonNoFocusActivity)
	}

	if sl := snap.Slider; sl != nil {
		if sl.DragDurationMs > 0 && sl.DragDurationMs < 120 {
			sc.add(16, models.ReasonDragTooFast)
		}
		switch {
		case sl.QualityScore < 30:
			sc.add(20, models.ReasonLowSliderQuality)
		case sl.QualityScore < 45:
			sc.add(10, models.ReasonWeakSliderQuality)
		}
		if !sl.ReachedEnd && sl.Attempts > 0 {
			sc.add(6, models.ReasonIncompleteDrag)
		}
	}

	switch in.CaptchaState {
	case models.CaptchaSliderFailed:
		sc.add(25, models.ReasonChallengeFailed)
	case models.CaptchaSliderPassed:
		sc.add(-20, models.ReasonChallengePassed)
	}

	if in.RateLimit.Degraded {
		sc.add(5, models.ReasonRateLimitDegraded)
	}

	score := int(signals.Clamp(float64(sc.total), 0, 100, 100))
	level := LevelFor(score)

	reasons := sc.reasons
	decision, cooldown := decide(level, in.CaptchaState, snap, in.RateLimit.Allowed)
	if !in.RateLimit.Allowed {
		reasons = append(reasons, models.ReasonRateLimited)
	}

	challenge := models.ChallengeSlider
	if decision == models.DecisionAllow {
		challenge = models.ChallengeNone
	}
	return models.Evaluation{
		Score:         score,
		Level:         level,
		Decision:      decision,
		CooldownSec:   cooldown,
		ChallengeType: challenge,
		ReasonCodes:   reasons,
	}
}

// LevelFor maps a clamped score to its severity band.
func LevelFor(score int) models.Level {
	switch {
	case score <= maxLowScore:
		return models.LevelLow
	case score <= maxMediumScore:
		return models.LevelMedium
	case score <= maxHighScore:
		return models.LevelHigh
	default:
		return models.LevelCritical
	}
}
