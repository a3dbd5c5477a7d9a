package collector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"authguard/internal/signals"
	"authguard/internal/slider"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSource struct {
	mu           sync.Mutex
	subscribers  []func(Event)
	unsubscribed int
}

func (f *fakeSource) Subscribe(fn func(Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subscribers = nil
		f.unsubscribed++
	}
}

func (f *fakeSource) Emit(e Event) {
	f.mu.Lock()
	subs := append([]func(Event){}, f.subscribers...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

type TrackerSuite struct {
	suite.Suite
	clock   *fakeClock
	source  *fakeSource
	tracker *Tracker
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	s.source = &fakeSource{}
	s.tracker = NewTracker(WithClock(s.clock))
	s.Require().NoError(s.tracker.Start(s.source))
}

func (s *TrackerSuite) TearDownTest() {
	s.tracker.Close()
}

func (s *TrackerSuite) typeKeys(gaps ...time.Duration) {
	s.source.Emit(Event{Kind: EventKeyInput, Field: "email", At: s.clock.Now()})
	for _, g := range gaps {
		s.clock.Advance(g)
		s.source.Emit(Event{Kind: EventKeyInput, Field: "email", At: s.clock.Now()})
	}
}

func (s *TrackerSuite) TestEmptySessionIsMostSuspicious() {
	snap := s.tracker.Snapshot()
	s.Equal(signals.Snapshot{}, snap)
}

func (s *TrackerSuite) TestHumanSession() {
	s.source.Emit(Event{Kind: EventFocus, Field: "email"})
	for i, p := range [][2]float64{{10, 10}, {40, 22}, {75, 30}, {90, 55}, {120, 62}, {150, 90}} {
		s.clock.Advance(time.Duration(15+i*7) * time.Millisecond)
		s.source.Emit(Event{Kind: EventPointerMove, X: p[0], Y: p[1], Pointer: signals.PointerMouse})
	}
	s.typeKeys(120*time.Millisecond, 80*time.Millisecond, 210*time.Millisecond, 95*time.Millisecond)
	s.source.Emit(Event{Kind: EventBlur, Field: "email"})
	s.source.Emit(Event{Kind: EventFocus, Field: "password"})
	s.clock.Advance(3 * time.Second)

	snap := s.tracker.Snapshot()
	s.True(snap.HasMouseMovement)
	s.True(snap.HasNaturalMousePath)
	s.True(snap.HasNaturalInputPattern)
	s.True(snap.HasFocusActivity)
	s.Equal(2, snap.InputSwitchCount)
	s.Equal(100, snap.AntiBotScore)
	s.GreaterOrEqual(snap.ElapsedMs, 3000)
	s.Nil(snap.Slider)
}

func (s *TrackerSuite) TestScriptedSession() {
	for i := range 10 {
		s.source.Emit(Event{Kind: EventPointerMove, X: float64(i * 10), Y: float64(i * 10), Pointer: signals.PointerMouse})
	}
	s.typeKeys(10*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond)
	s.clock.Advance(400 * time.Millisecond)

	snap := s.tracker.Snapshot()
	s.True(snap.HasMouseMovement)
	s.False(snap.HasNaturalMousePath, "straight line")
	s.False(snap.HasNaturalInputPattern, "machine-gun typing")
	s.False(snap.HasFocusActivity)
	s.Equal(20, snap.AntiBotScore)
	s.Equal(440, snap.ElapsedMs)
}

func (s *TrackerSuite) TestEvenlyPacedTypingIsRobotic() {
	s.typeKeys(100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond, 100*time.Millisecond)
	s.False(s.tracker.Snapshot().HasNaturalInputPattern)
}

func (s *TrackerSuite) TestTouchMovesAreNotMouseMovement() {
	for i := range 6 {
		s.source.Emit(Event{Kind: EventPointerMove, X: float64(i), Pointer: signals.PointerTouch})
	}
	s.False(s.tracker.Snapshot().HasMouseMovement)
}

func (s *TrackerSuite) TestRefocusingSameFieldIsNotASwitch() {
	s.source.Emit(Event{Kind: EventFocus, Field: "email"})
	s.source.Emit(Event{Kind: EventBlur, Field: "email"})
	s.source.Emit(Event{Kind: EventFocus, Field: "email"})
	s.Equal(1, s.tracker.Snapshot().InputSwitchCount)
}

func (s *TrackerSuite) TestCloseStopsTracking() {
	s.tracker.Close()
	s.tracker.Close()
	s.Equal(1, s.source.unsubscribed)

	s.source.Emit(Event{Kind: EventFocus, Field: "email"})
	s.False(s.tracker.Snapshot().HasFocusActivity)
	s.ErrorIs(s.tracker.Start(s.source), ErrClosed)
}

func (s *TrackerSuite) TestStartTwice() {
	s.ErrorIs(s.tracker.Start(s.source), ErrAlreadyStarted)
}

func (s *TrackerSuite) TestSliderOutcomeIsIncluded() {
	g := slider.NewGesture(150)
	tr := NewTracker(WithClock(s.clock), WithSlider(g))
	s.Require().NoError(tr.Start(s.source))
	defer tr.Close()

	s.Nil(tr.Snapshot().Slider)

	s.Require().NoError(g.Begin(signals.PointerMouse, slider.Sample{X: 0}))
	_, err := g.End(slider.Sample{X: 150, At: 20 * time.Millisecond})
	s.Require().NoError(err)

	snap := tr.Snapshot()
	s.Require().NotNil(snap.Slider)
	s.False(snap.Slider.Verified)
	s.Equal(1, snap.Slider.Attempts)
	s.Equal(20, snap.Slider.DragDurationMs)
}

func (s *TrackerSuite) TestSessionsAreIndependent() {
	other := NewTracker(WithClock(s.clock))
	otherSource := &fakeSource{}
	s.Require().NoError(other.Start(otherSource))
	defer other.Close()

	s.source.Emit(Event{Kind: EventFocus, Field: "email"})

	s.True(s.tracker.Snapshot().HasFocusActivity)
	s.False(other.Snapshot().HasFocusActivity)
}
