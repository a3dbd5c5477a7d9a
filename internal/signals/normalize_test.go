package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, Clamp(5, 0, 10, 0))
	assert.Equal(t, 0.0, Clamp(-3, 0, 10, 7))
	assert.Equal(t, 10.0, Clamp(11, 0, 10, 7))
	assert.Equal(t, 7.0, Clamp(math.NaN(), 0, 10, 7))
	assert.Equal(t, 7.0, Clamp(math.Inf(1), 0, 10, 7))
	assert.Equal(t, 7.0, Clamp(math.Inf(-1), 0, 10, 7))
}

func TestNormalizeDefaults(t *testing.T) {
	assert.Equal(t, Snapshot{}, Normalize(nil))
	assert.Equal(t, Snapshot{}, Normalize(map[string]any{}))
}

func TestNormalizeHostileValues(t *testing.T) {
	raw := map[string]any{
		"elapsedMs":              1e12,
		"antiBotScore":           -40.0,
		"inputSwitchCount":       "12",
		"hasMouseMovement":       "true",
		"hasNaturalMousePath":    1.0,
		"hasNaturalInputPattern": true,
		"hasFocusActivity":       nil,
		"slider": map[string]any{
			"verified":       "yes",
			"qualityScore":   math.NaN(),
			"attempts":       99,
			"pointerType":    "TOUCH",
			"dragDurationMs": int64(-1),
			"reachedEnd":     true,
		},
	}

	s := Normalize(raw)
	assert.Equal(t, MaxElapsedMs, s.ElapsedMs)
	assert.Equal(t, 0, s.AntiBotScore)
	assert.Equal(t, 0, s.InputSwitchCount, "numeric strings are not numbers")
	assert.False(t, s.HasMouseMovement)
	assert.False(t, s.HasNaturalMousePath)
	assert.True(t, s.HasNaturalInputPattern)
	assert.False(t, s.HasFocusActivity)

	require.NotNil(t, s.Slider)
	assert.False(t, s.Slider.Verified)
	assert.Equal(t, 0, s.Slider.QualityScore)
	assert.Equal(t, MaxSliderAttempts, s.Slider.Attempts)
	assert.Equal(t, PointerTouch, s.Slider.PointerType)
	assert.Equal(t, 0, s.Slider.DragDurationMs)
	assert.True(t, s.Slider.ReachedEnd)
}

func TestNormalizeRounds(t *testing.T) {
	s := Normalize(map[string]any{"antiBotScore": 49.5, "elapsedMs": 1199.4})
	assert.Equal(t, 50, s.AntiBotScore)
	assert.Equal(t, 1199, s.ElapsedMs)
}

func TestNormalizeSliderMustBeObject(t *testing.T) {
	assert.Nil(t, Normalize(map[string]any{"slider": []any{1, 2}}).Slider)
	assert.Nil(t, Normalize(map[string]any{"slider": true}).Slider)
}

func TestNormalizeJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Snapshot
	}{
		{name: "not json", raw: `{{{`, want: Snapshot{}},
		{name: "array", raw: `[1,2,3]`, want: Snapshot{}},
		{name: "null", raw: `null`, want: Snapshot{}},
		{name: "string", raw: `"hello"`, want: Snapshot{}},
		{name: "empty", raw: ``, want: Snapshot{}},
		{name: "overflowing number", raw: `{"elapsedMs": 1e400}`, want: Snapshot{}},
		{
			name: "valid object",
			raw:  `{"elapsedMs": 4200, "antiBotScore": 77, "inputSwitchCount": 3, "hasFocusActivity": true, "slider": {"pointerType": "pen", "qualityScore": 61}}`,
			want: Snapshot{
				ElapsedMs: 4200, AntiBotScore: 77, InputSwitchCount: 3, HasFocusActivity: true,
				Slider: &SliderSignal{PointerType: PointerPen, QualityScore: 61},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeJSON([]byte(tc.raw)))
		})
	}
}

// Every field of every normalized snapshot stays in range whatever the input.
func TestNormalizeAlwaysInRange(t *testing.T) {
	values := []any{nil, true, "x", -1e308, -1.0, 0.0, 0.4, 50.0, 1e308, math.NaN(), math.Inf(1), int(-5), int64(1 << 40), []any{}, map[string]any{}}
	keys := []string{"elapsedMs", "antiBotScore", "inputSwitchCount"}
	sliderKeys := []string{"qualityScore", "attempts", "dragDurationMs"}

	for _, v := range values {
		raw := map[string]any{}
		slider := map[string]any{"pointerType": v}
		for _, k := range keys {
			raw[k] = v
		}
		for _, k := range sliderKeys {
			slider[k] = v
		}
		raw["slider"] = slider

		s := Normalize(raw)
		assert.GreaterOrEqual(t, s.ElapsedMs, 0)
		assert.LessOrEqual(t, s.ElapsedMs, MaxElapsedMs)
		assert.GreaterOrEqual(t, s.AntiBotScore, 0)
		assert.LessOrEqual(t, s.AntiBotScore, MaxAntiBotScore)
		assert.GreaterOrEqual(t, s.InputSwitchCount, 0)
		assert.LessOrEqual(t, s.InputSwitchCount, MaxInputSwitchCount)
		require.NotNil(t, s.Slider)
		assert.GreaterOrEqual(t, s.Slider.QualityScore, 0)
		assert.LessOrEqual(t, s.Slider.QualityScore, MaxQualityScore)
		assert.GreaterOrEqual(t, s.Slider.Attempts, 0)
		assert.LessOrEqual(t, s.Slider.Attempts, MaxSliderAttempts)
		assert.GreaterOrEqual(t, s.Slider.DragDurationMs, 0)
		assert.LessOrEqual(t, s.Slider.DragDurationMs, MaxDragDurationMs)
		assert.Equal(t, PointerUnknown, s.Slider.PointerType)
	}
}

func TestBounded(t *testing.T) {
	s := Snapshot{
		ElapsedMs:    -10,
		AntiBotScore: 400,
		Slider:       &SliderSignal{Attempts: 11, PointerType: "stylus"},
	}.Bounded()
	assert.Equal(t, 0, s.ElapsedMs)
	assert.Equal(t, MaxAntiBotScore, s.AntiBotScore)
	assert.Equal(t, MaxSliderAttempts, s.Slider.Attempts)
	assert.Equal(t, PointerUnknown, s.Slider.PointerType)
}
