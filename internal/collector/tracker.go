// Package collector observes one form-fill session and reduces it to a signal snapshot.
//
// A Tracker is created per attempt, subscribed to an event source, and closed when
// the form is submitted or abandoned. Nothing is shared between trackers.
package collector

import (
	"errors"
	"math"
	"sync"
	"time"

	"authguard/internal/signals"
	"authguard/internal/slider"
)

// EventKind classifies a UI event.
type EventKind int

const (
	EventPointerMove EventKind = iota
	EventFocus
	EventBlur
	EventKeyInput
)

// Event is one UI observation. At may be zero, in which case the tracker clock
// stamps it on arrival.
type Event struct {
	Kind    EventKind
	Field   string
	X, Y    float64
	Pointer signals.PointerType
	At      time.Time
}

// EventSource delivers UI events to a subscriber until the returned function is called.
type EventSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var (
	ErrAlreadyStarted = errors.New("tracker already started")
	ErrClosed         = errors.New("tracker closed")
)

// Heuristic limits.
const (
	maxTracked           = 512
	minMouseMoves        = 3
	minPathPoints        = 5
	minPathCurvature     = 1.05
	minHeadingChanges    = 2
	headingChangeRadians = 15 * math.Pi / 180
	minKeyEvents         = 4
	minKeyIntervalCV     = 0.15
	minKeyIntervalMean   = 25 * time.Millisecond
	unhurriedElapsed     = 2200 * time.Millisecond
)

type point struct{ x, y float64 }

// Tracker accumulates the events of a single session.
type Tracker struct {
	clock   Clock
	gesture *slider.Gesture

	mu          sync.Mutex
	started     time.Time
	running     bool
	closed      bool
	unsubscribe func()

	mouseMoves int
	path       []point
	keyTimes   []time.Time
	focusSeen  bool
	switches   int
	lastField  string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithSlider attaches the slider challenge whose outcome goes into the snapshot.
func WithSlider(g *slider.Gesture) Option {
	return func(t *Tracker) { t.gesture = g }
}

// NewTracker creates an unstarted tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{clock: systemClock{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start marks the form as rendered and subscribes to src.
func (t *Tracker) Start(src EventSource) error {
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return ErrClosed
	case t.running:
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.running = true
	t.started = t.clock.Now()
	t.mu.Unlock()

	// Subscribe outside the lock: a source may deliver buffered events synchronously.
	unsub := src.Subscribe(t.handle)
	t.mu.Lock()
	t.unsubscribe = unsub
	t.mu.Unlock()
	return nil
}

// Close unsubscribes from the source. Calling it more than once is safe.
func (t *Tracker) Close() {
	t.mu.Lock()
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.running = false
	t.closed = true
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (t *Tracker) handle(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	if e.At.IsZero() {
		e.At = t.clock.Now()
	}

	switch e.Kind {
	case EventPointerMove:
		if e.Pointer == signals.PointerTouch {
			return
		}
		t.mouseMoves++
		if len(t.path) < maxTracked {
			t.path = append(t.path, point{e.X, e.Y})
		}
	case EventFocus:
		t.focusSeen = true
		if e.Field != "" && e.Field != t.lastField {
			t.switches++
			t.lastField = e.Field
		}
	case EventBlur:
		t.focusSeen = true
	case EventKeyInput:
		if len(t.keyTimes) < maxTracked {
			t.keyTimes = append(t.keyTimes, e.At)
		}
	}
}

// Snapshot summarizes the session so far.
func (t *Tracker) Snapshot() signals.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var elapsed time.Duration
	if !t.started.IsZero() {
		elapsed = t.clock.Now().Sub(t.started)
	}

	s := signals.Snapshot{
		ElapsedMs:              int(elapsed / time.Millisecond),
		InputSwitchCount:       t.switches,
		HasMouseMovement:       t.mouseMoves >= minMouseMoves,
		HasNaturalMousePath:    naturalPath(t.path),
		HasNaturalInputPattern: naturalTyping(t.keyTimes),
		HasFocusActivity:       t.focusSeen,
	}
	s.AntiBotScore = antiBotScore(s, elapsed)
	if t.gesture != nil {
		s.Slider = t.gesture.Signal()
	}
	return s.Bounded()
}

// antiBotScore weighs the heuristics into a 0..100 composite.
func antiBotScore(s signals.Snapshot, elapsed time.Duration) int {
	score := 0
	if s.HasMouseMovement {
		score += 20
	}
	if s.HasNaturalMousePath {
		score += 20
	}
	if s.HasNaturalInputPattern {
		score += 25
	}
	if s.HasFocusActivity {
		score += 15
	}
	if s.InputSwitchCount >= 2 {
		score += 10
	}
	if elapsed >= unhurriedElapsed {
		score += 10
	}
	return score
}

// naturalPath looks for curvature or heading changes; scripted cursors move in
// straight lines.
func naturalPath(pts []point) bool {
	if len(pts) < minPathPoints {
		return false
	}
	var length float64
	changes := 0
	prevHeading := math.NaN()
	for i := 1; i < len(pts); i++ {
		dx, dy := pts[i].x-pts[i-1].x, pts[i].y-pts[i-1].y
		d := math.Hypot(dx, dy)
		if d == 0 {
			continue
		}
		length += d
		heading := math.Atan2(dy, dx)
		if !math.IsNaN(prevHeading) && angleBetween(heading, prevHeading) > headingChangeRadians {
			changes++
		}
		prevHeading = heading
	}
	if length == 0 {
		return false
	}
	first, last := pts[0], pts[len(pts)-1]
	displacement := math.Hypot(last.x-first.x, last.y-first.y)
	if displacement == 0 || length/displacement >= minPathCurvature {
		return true
	}
	return changes >= minHeadingChanges
}

func angleBetween(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// naturalTyping requires irregular, humanly paced gaps between keystrokes.
func naturalTyping(times []time.Time) bool {
	if len(times) < minKeyEvents {
		return false
	}
	gaps := make([]float64, 0, len(times)-1)
	var sum float64
	for i := 1; i < len(times); i++ {
		g := float64(times[i].Sub(times[i-1]))
		if g < 0 {
			return false
		}
		gaps = append(gaps, g)
		sum += g
	}
	mean := sum / float64(len(gaps))
	if mean < float64(minKeyIntervalMean) {
		return false
	}
	var sq float64
	for _, g := range gaps {
		sq += (g - mean) * (g - mean)
	}
	return math.Sqrt(sq/float64(len(gaps)))/mean >= minKeyIntervalCV
}
