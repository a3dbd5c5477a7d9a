// Package signals defines the behavioral signal snapshot a client submits with an
// authentication attempt, and the normalization that makes it safe to score.
package signals

import "strings"

// Bounds for every numeric field. Values outside them are clamped.
const (
	MaxElapsedMs        = 300_000
	MaxAntiBotScore     = 100
	MaxInputSwitchCount = 100
	MaxQualityScore     = 100
	MaxSliderAttempts   = 10
	MaxDragDurationMs   = 30_000
)

// PointerType is the input device that produced a slider gesture.
type PointerType string

const (
	PointerMouse   PointerType = "mouse"
	PointerTouch   PointerType = "touch"
	PointerPen     PointerType = "pen"
	PointerUnknown PointerType = "unknown"
)

// ParsePointerType maps any string to a known pointer type, case-insensitively.
func ParsePointerType(s string) PointerType {
	switch p := PointerType(strings.ToLower(strings.TrimSpace(s))); p {
	case PointerMouse, PointerTouch, PointerPen:
		return p
	default:
		return PointerUnknown
	}
}

// SliderSignal summarizes the slider challenge as seen by the client.
type SliderSignal struct {
	Verified       bool        `json:"verified"`
	QualityScore   int         `json:"qualityScore"`
	Attempts       int         `json:"attempts"`
	PointerType    PointerType `json:"pointerType"`
	DragDurationMs int         `json:"dragDurationMs"`
	ReachedEnd     bool        `json:"reachedEnd"`
}

// Snapshot is the bounded signal set for one evaluation request. The zero value is
// the most suspicious valid snapshot.
type Snapshot struct {
	ElapsedMs              int           `json:"elapsedMs"`
	AntiBotScore           int           `json:"antiBotScore"`
	InputSwitchCount       int           `json:"inputSwitchCount"`
	HasMouseMovement       bool          `json:"hasMouseMovement"`
	HasNaturalMousePath    bool          `json:"hasNaturalMousePath"`
	HasNaturalInputPattern bool          `json:"hasNaturalInputPattern"`
	HasFocusActivity       bool          `json:"hasFocusActivity"`
	Slider                 *SliderSignal `json:"slider,omitempty"`
}
