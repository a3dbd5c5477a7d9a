package risk

import (
	"authguard/internal/risk/models"
	"authguard/internal/signals"
)

// Cooldowns in seconds.
const (
	cooldownRateLimited       = 15
	cooldownHighChallenge     = 15
	cooldownHighThrottle      = 45
	cooldownCriticalChallenge = 30
	cooldownCriticalDeny      = 120
)

// Guard thresholds.
const (
	minAntiBotHighAllow     = 30
	minAntiBotCriticalAllow = 65
	minQualityCriticalAllow = 60
	repeatedFailureAttempts = 2
)

// decide applies the enforcement policy. A rate-limited identifier is always
// challenged; otherwise each level has its own guarded branches, and an unknown
// level escalates to a challenge.
func decide(level models.Level, captcha models.CaptchaState, snap signals.Snapshot, allowed bool) (models.Decision, int) {
	if !allowed {
		return models.DecisionChallenge, cooldownRateLimited
	}

	passed := captcha == models.CaptchaSliderPassed
	failed := captcha == models.CaptchaSliderFailed
	var verified bool
	var attempts, quality int
	if snap.Slider != nil {
		verified = snap.Slider.Verified
		attempts = snap.Slider.Attempts
		quality = snap.Slider.QualityScore
	}

	switch level {
	case models.LevelLow:
		return models.DecisionAllow, 0

	case models.LevelMedium:
		if passed && verified {
			return models.DecisionAllow, 0
		}
		return models.DecisionChallenge, 0

	case models.LevelHigh:
		switch {
		case passed && snap.AntiBotScore >= minAntiBotHighAllow:
			return models.DecisionAllow, 0
		case failed && attempts >= repeatedFailureAttempts:
			return models.DecisionThrottle, cooldownHighThrottle
		default:
			return models.DecisionChallenge, cooldownHighChallenge
		}

	case models.LevelCritical:
		switch {
		case passed && snap.AntiBotScore >= minAntiBotCriticalAllow && quality >= minQualityCriticalAllow:
			return models.DecisionAllow, 0
		case failed && attempts >= repeatedFailureAttempts:
			return models.DecisionDeny, cooldownCriticalDeny
		default:
			return models.DecisionChallenge, cooldownCriticalChallenge
		}

	default:
		return models.DecisionChallenge, cooldownCriticalChallenge
	}
}
