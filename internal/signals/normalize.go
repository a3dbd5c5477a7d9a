package signals

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Clamp bounds value to [min, max]. NaN and infinities resolve to fallback.
func Clamp(value, min, max, fallback float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Normalize builds a Snapshot from an untrusted decoded JSON object. It never fails:
// missing keys, wrong types and out-of-range numbers all resolve to safe defaults.
func Normalize(raw map[string]any) Snapshot {
	s := Snapshot{
		ElapsedMs:              clampInt(raw, "elapsedMs", MaxElapsedMs),
		AntiBotScore:           clampInt(raw, "antiBotScore", MaxAntiBotScore),
		InputSwitchCount:       clampInt(raw, "inputSwitchCount", MaxInputSwitchCount),
		HasMouseMovement:       getBool(raw, "hasMouseMovement"),
		HasNaturalMousePath:    getBool(raw, "hasNaturalMousePath"),
		HasNaturalInputPattern: getBool(raw, "hasNaturalInputPattern"),
		HasFocusActivity:       getBool(raw, "hasFocusActivity"),
	}
	if slider, ok := raw["slider"].(map[string]any); ok {
		s.Slider = normalizeSlider(slider)
	}
	return s
}

// NormalizeJSON decodes raw and normalizes it. Anything other than a JSON object
// yields the zero Snapshot.
func NormalizeJSON(raw []byte) Snapshot {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return Snapshot{}
	}
	return Normalize(m)
}

// Bounded re-applies the field bounds to a snapshot built in-process.
func (s Snapshot) Bounded() Snapshot {
	s.ElapsedMs = boundInt(s.ElapsedMs, MaxElapsedMs)
	s.AntiBotScore = boundInt(s.AntiBotScore, MaxAntiBotScore)
	s.InputSwitchCount = boundInt(s.InputSwitchCount, MaxInputSwitchCount)
	if s.Slider != nil {
		sl := *s.Slider
		sl.QualityScore = boundInt(sl.QualityScore, MaxQualityScore)
		sl.Attempts = boundInt(sl.Attempts, MaxSliderAttempts)
		sl.DragDurationMs = boundInt(sl.DragDurationMs, MaxDragDurationMs)
		sl.PointerType = ParsePointerType(string(sl.PointerType))
		s.Slider = &sl
	}
	return s
}

func normalizeSlider(raw map[string]any) *SliderSignal {
	pointer, _ := raw["pointerType"].(string)
	return &SliderSignal{
		Verified:       getBool(raw, "verified"),
		QualityScore:   clampInt(raw, "qualityScore", MaxQualityScore),
		Attempts:       clampInt(raw, "attempts", MaxSliderAttempts),
		PointerType:    ParsePointerType(pointer),
		DragDurationMs: clampInt(raw, "dragDurationMs", MaxDragDurationMs),
		ReachedEnd:     getBool(raw, "reachedEnd"),
	}
}

func clampInt(raw map[string]any, key string, hi int) int {
	v, ok := getFloat(raw, key)
	if !ok {
		return 0
	}
	return int(math.Round(Clamp(v, 0, float64(hi), 0)))
}

func boundInt(v, hi int) int {
	return min(max(v, 0), hi)
}

// getFloat accepts the numeric shapes a JSON decoder or an in-process caller produces.
// Strings are not numbers.
func getFloat(raw map[string]any, key string) (float64, bool) {
	switch v := raw[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func getBool(raw map[string]any, key string) bool {
	b, _ := raw[key].(bool)
	return b
}
