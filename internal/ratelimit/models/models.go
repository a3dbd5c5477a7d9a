package models

import (
	"math"
	"strings"
	"time"

	"authguard/pkg/domain"
)

// Policy is the attempt budget for one action.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// WindowMinutes returns the window rounded up to whole minutes.
func (p Policy) WindowMinutes() int {
	return int(math.Ceil(p.Window.Minutes()))
}

// Verdict answers whether an identifier may attempt an action right now.
//
// RemainingMinutes is the time until the oldest counted attempt leaves the window;
// nil means the backend could not say. Degraded means the primary backend did not
// produce this answer.
type Verdict struct {
	Allowed          bool
	RemainingMinutes *int
	Degraded         bool
}

// NewVerdict builds an undegraded verdict with remaining rounded up to whole minutes.
func NewVerdict(allowed bool, remaining time.Duration) *Verdict {
	return &Verdict{Allowed: allowed, RemainingMinutes: MinutesPtr(remaining)}
}

// FailOpen is the verdict used when no backend could answer.
func FailOpen() *Verdict {
	return &Verdict{Allowed: true, Degraded: true}
}

// MinutesPtr rounds d up to whole minutes, clamped at zero.
func MinutesPtr(d time.Duration) *int {
	m := max(int(math.Ceil(d.Minutes())), 0)
	return &m
}

// Normalized returns a copy with RemainingMinutes clamped at zero.
func (v Verdict) Normalized() *Verdict {
	if v.RemainingMinutes != nil {
		m := max(*v.RemainingMinutes, 0)
		v.RemainingMinutes = &m
	}
	return &v
}

// Key builds the counter key for an identifier and action. Delimiters inside the
// identifier are escaped so one identifier cannot address another's bucket.
func Key(action domain.Action, identifier string) string {
	return "rl:" + SanitizeKeySegment(string(action)) + ":" + SanitizeKeySegment(identifier)
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// SanitizeKeySegment percent-escapes the key delimiter in a user-controlled segment.
// The escape character is escaped too, so distinct segments stay distinct.
func SanitizeKeySegment(s string) string {
	return keyEscaper.Replace(s)
}
