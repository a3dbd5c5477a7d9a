// Package slider judges whether a slider drag looks like human motor control.
//
// A gesture is an ordered series of pointer samples. Validate runs a fixed sequence
// of rejection checks over its kinematics; the first failing check names the reason.
// Accepted gestures also get a quality score describing how comfortably they sit
// inside the acceptance envelope.
package slider

import (
	"math"
	"time"

	"authguard/internal/signals"
)

// Rejection reasons.
const (
	ReasonTooFewSamples    = "too_few_samples"
	ReasonDuration         = "duration_out_of_range"
	ReasonDisplacement     = "insufficient_displacement"
	ReasonStraightness     = "abnormal_straightness"
	ReasonSegmentJump      = "segment_jump"
	ReasonUniformMotion    = "uniform_motion"
	ReasonIncomplete       = "incomplete"
	ReasonInvalidTrackSize = "invalid_track_width"
	ReasonInvalidSample    = "invalid_sample"
	ReasonTimeReversal     = "time_reversal"
)

// Sample is one pointer position. At is measured from any fixed origin; only the
// differences between samples matter.
type Sample struct {
	X  float64
	Y  float64
	At time.Duration
}

// Thresholds are the tunable acceptance constants.
type Thresholds struct {
	MinSamples         int
	MinDuration        time.Duration
	MaxDuration        time.Duration
	MinDisplacementPx  float64
	MinStraightness    float64
	MaxStraightness    float64
	MaxSegmentJumpPx   float64
	MinJitter          float64
	UniformFastBelow   time.Duration
	CompletionFraction float64
}

// DefaultThresholds returns the production acceptance envelope.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSamples:         4,
		MinDuration:        180 * time.Millisecond,
		MaxDuration:        15 * time.Second,
		MinDisplacementPx:  80,
		MinStraightness:    1.0,
		MaxStraightness:    6.0,
		MaxSegmentJumpPx:   240,
		MinJitter:          0.01,
		UniformFastBelow:   700 * time.Millisecond,
		CompletionFraction: 0.96,
	}
}

// Metrics are the kinematics computed from a gesture.
type Metrics struct {
	Samples      int
	Duration     time.Duration
	NetDX        float64
	PathLength   float64
	Straightness float64
	MaxJump      float64
	Jitter       float64
	Progress     float64
}

// Result is the verdict on one gesture.
type Result struct {
	Passed     bool
	Quality    int
	Reason     string
	ReachedEnd bool
	Metrics    Metrics
}

// Validate checks a gesture against DefaultThresholds.
func Validate(samples []Sample, pointer signals.PointerType, trackWidth float64) Result {
	return ValidateWith(DefaultThresholds(), samples, pointer, trackWidth)
}

// ValidateWith checks a gesture against th.
func ValidateWith(th Thresholds, samples []Sample, pointer signals.PointerType, trackWidth float64) Result {
	m := measure(samples, trackWidth)
	res := Result{Metrics: m, ReachedEnd: m.Progress >= th.CompletionFraction}

	switch {
	case m.Samples < th.MinSamples:
		res.Reason = ReasonTooFewSamples
	case !finite(samples):
		res.Reason = ReasonInvalidSample
	case !monotonic(samples):
		res.Reason = ReasonTimeReversal
	case !(trackWidth > 0) || math.IsInf(trackWidth, 0):
		res.Reason = ReasonInvalidTrackSize
	case m.Duration < th.MinDuration || m.Duration > th.MaxDuration:
		res.Reason = ReasonDuration
	case m.NetDX < th.MinDisplacementPx:
		res.Reason = ReasonDisplacement
	case m.Straightness < th.MinStraightness || m.Straightness > th.MaxStraightness:
		res.Reason = ReasonStraightness
	case m.MaxJump > th.MaxSegmentJumpPx:
		res.Reason = ReasonSegmentJump
	case pointer != signals.PointerTouch && m.Jitter < th.MinJitter && m.Duration < th.UniformFastBelow:
		res.Reason = ReasonUniformMotion
	case !res.ReachedEnd:
		res.Reason = ReasonIncomplete
	default:
		res.Passed = true
		res.Quality = quality(th, m)
	}
	return res
}

func finite(samples []Sample) bool {
	for _, s := range samples {
		if math.IsNaN(s.X) || math.IsInf(s.X, 0) || math.IsNaN(s.Y) || math.IsInf(s.Y, 0) {
			return false
		}
	}
	return true
}

// monotonic reports whether timestamps never go backwards. Equal timestamps are
// coalesced events and allowed.
func monotonic(samples []Sample) bool {
	for i := 1; i < len(samples); i++ {
		if samples[i].At < samples[i-1].At {
			return false
		}
	}
	return true
}

func measure(samples []Sample, trackWidth float64) Metrics {
	m := Metrics{Samples: len(samples)}
	if len(samples) < 2 {
		return m
	}
	first, last := samples[0], samples[len(samples)-1]
	m.Duration = last.At - first.At
	m.NetDX = last.X - first.X

	speeds := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		d := math.Hypot(b.X-a.X, b.Y-a.Y)
		m.PathLength += d
		m.MaxJump = math.Max(m.MaxJump, d)

		// Coalesced events can share a timestamp; count them as 1ms apart.
		dtMs := math.Max(float64(b.At-a.At)/float64(time.Millisecond), 1)
		speeds = append(speeds, d/dtMs)
	}
	if m.NetDX > 0 {
		m.Straightness = m.PathLength / m.NetDX
	}
	m.Jitter = coefficientOfVariation(speeds)
	if trackWidth > 0 {
		m.Progress = m.NetDX / trackWidth
	}
	return m
}

func coefficientOfVariation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq/float64(len(xs))) / mean
}

// quality weights how far each metric sits from the edge of its acceptance range.
func quality(th Thresholds, m Metrics) int {
	dur := float64(m.Duration) / float64(time.Millisecond)
	minDur := float64(th.MinDuration) / float64(time.Millisecond)
	maxDur := float64(th.MaxDuration) / float64(time.Millisecond)

	var durScore float64
	switch {
	case dur < 400:
		durScore = ramp(dur, minDur, 400)
	case dur <= 4000:
		durScore = 1
	default:
		durScore = 1 - ramp(dur, 4000, maxDur)
	}

	var straightScore float64
	switch {
	case m.Straightness < 1.005:
		straightScore = 0.7
	case m.Straightness <= 2:
		straightScore = 1
	default:
		straightScore = 1 - ramp(m.Straightness, 2, th.MaxStraightness)
	}

	jumpScore := 1 - ramp(m.MaxJump, 0, th.MaxSegmentJumpPx)
	jitterScore := ramp(m.Jitter, 0, 0.2)
	sampleScore := ramp(float64(m.Samples), 0, 16)

	q := 0.25*durScore + 0.2*straightScore + 0.2*jumpScore + 0.25*jitterScore + 0.1*sampleScore
	return int(math.Round(signals.Clamp(q*100, 0, 100, 0)))
}

// ramp maps v linearly from [lo, hi] onto [0, 1], clamped.
func ramp(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return signals.Clamp((v-lo)/(hi-lo), 0, 1, 0)
}
