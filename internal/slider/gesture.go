package slider

import (
	"errors"
	"sync"
	"time"

	"authguard/internal/signals"
)

// State is the position of a Gesture in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when an event does not apply to the current state.
var ErrInvalidTransition = errors.New("invalid slider transition")

// maxSamples bounds memory for a drag that never ends.
const maxSamples = 4096

// Gesture tracks one slider challenge across drag attempts.
//
//	idle -> dragging -> success (terminal until Reset)
//	                 -> failed  -> idle (automatic)
type Gesture struct {
	trackWidth float64
	thresholds Thresholds
	observer   func(from, to State)

	mu       sync.Mutex
	state    State
	pointer  signals.PointerType
	samples  []Sample
	attempts int
	last     *Result
}

// GestureOption configures a Gesture.
type GestureOption func(*Gesture)

// WithThresholds overrides the acceptance envelope.
func WithThresholds(th Thresholds) GestureOption {
	return func(g *Gesture) { g.thresholds = th }
}

// WithObserver receives every state transition, including the transient failed state.
// It is called with the gesture lock held and must not call back into the gesture.
func WithObserver(fn func(from, to State)) GestureOption {
	return func(g *Gesture) { g.observer = fn }
}

// NewGesture creates an idle gesture for a track of the given width in pixels.
func NewGesture(trackWidth float64, opts ...GestureOption) *Gesture {
	g := &Gesture{
		trackWidth: trackWidth,
		thresholds: DefaultThresholds(),
		pointer:    signals.PointerUnknown,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin starts a drag at s.
func (g *Gesture) Begin(pointer signals.PointerType, s Sample) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return ErrInvalidTransition
	}
	g.pointer = signals.ParsePointerType(string(pointer))
	g.samples = append(g.samples[:0], s)
	g.transition(StateDragging)
	return nil
}

// Move appends a sample to the active drag.
func (g *Gesture) Move(s Sample) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateDragging {
		return ErrInvalidTransition
	}
	if len(g.samples) < maxSamples {
		g.samples = append(g.samples, s)
	}
	return nil
}

// End finishes the drag at s and validates it. A failed drag returns the gesture to
// idle so the user can try again.
func (g *Gesture) End(s Sample) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateDragging {
		return Result{}, ErrInvalidTransition
	}
	if len(g.samples) < maxSamples {
		g.samples = append(g.samples, s)
	}

	res := ValidateWith(g.thresholds, g.samples, g.pointer, g.trackWidth)
	g.attempts = min(g.attempts+1, signals.MaxSliderAttempts)
	g.last = &res

	if res.Passed {
		g.transition(StateSuccess)
		return res, nil
	}
	g.transition(StateFailed)
	g.samples = g.samples[:0]
	g.transition(StateIdle)
	return res, nil
}

// Reset returns the gesture to idle and forgets all attempts.
func (g *Gesture) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.samples = g.samples[:0]
	g.attempts = 0
	g.last = nil
	if g.state != StateIdle {
		g.transition(StateIdle)
	}
}

// State returns the current lifecycle state.
func (g *Gesture) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Attempts returns the number of completed drags since the last Reset.
func (g *Gesture) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

// Signal summarizes the most recent drag, or nil if none has completed.
func (g *Gesture) Signal() *signals.SliderSignal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return nil
	}
	return &signals.SliderSignal{
		Verified:       g.state == StateSuccess,
		QualityScore:   g.last.Quality,
		Attempts:       g.attempts,
		PointerType:    g.pointer,
		DragDurationMs: min(max(int(g.last.Metrics.Duration/time.Millisecond), 0), signals.MaxDragDurationMs),
		ReachedEnd:     g.last.ReachedEnd,
	}
}

func (g *Gesture) transition(to State) {
	from := g.state
	g.state = to
	if g.observer != nil {
		g.observer(from, to)
	}
}
