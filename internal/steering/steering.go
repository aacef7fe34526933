// Package steering maps obstacle medians to a discrete steering action and
// tracks how long the current turn has been held.
package steering

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Action is the output of the decision table.
type Action int

const (
	// Hold keeps the current steering state untouched.
	Hold Action = iota
	TurnLeft
	TurnRight
)

func (a Action) String() string {
	switch a {
	case Hold:
		return "Hold"
	case TurnLeft:
		return "TurnLeft"
	case TurnRight:
		return "TurnRight"
	default:
		return "Unknown"
	}
}

// Decide maps the left and right obstacle medians to an action. A median of
// 0 means nothing was seen on that side.
//
// The closer hazard is steered away from; equal medians turn left.
func Decide(leftMedian, rightMedian float64) Action {
	switch {
	case leftMedian == 0 && rightMedian == 0:
		return Hold
	case leftMedian == 0:
		return TurnLeft
	case rightMedian == 0:
		return TurnRight
	case leftMedian < rightMedian:
		return TurnRight
	default:
		return TurnLeft
	}
}

// State is the tracked steering state.
type State int

const (
	Neutral State = iota
	TurningLeft
	TurningRight
)

func (s State) String() string {
	switch s {
	case Neutral:
		return "Neutral"
	case TurningLeft:
		return "TurningLeft"
	case TurningRight:
		return "TurningRight"
	default:
		return "Unknown"
	}
}

// DefaultRideDuration is how long a turn is held before it decays.
const DefaultRideDuration = 2 * time.Second

// Tracker holds the steering state and decays an active turn back to
// Neutral once it has been held longer than the ride duration.
//
// Not safe for concurrent use.
type Tracker struct {
	clock        clock.Clock
	rideDuration time.Duration

	state   State
	entered time.Time
}

// NewTracker returns a Neutral tracker. A nil clock uses the wall clock.
func NewTracker(clk clock.Clock, rideDuration time.Duration) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	if rideDuration <= 0 {
		rideDuration = DefaultRideDuration
	}
	return &Tracker{clock: clk, rideDuration: rideDuration}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Entered returns when the current turn was (re)entered. It is the zero
// time while Neutral.
func (t *Tracker) Entered() time.Time {
	return t.entered
}

// Apply records a decision. Turn actions always (re)enter their state with a
// fresh timestamp, even when the direction is unchanged, which keeps the
// decay window sliding while a hazard persists. Hold changes nothing.
//
// It reports whether the actuator must be driven.
func (t *Tracker) Apply(a Action) bool {
	switch a {
	case TurnLeft:
		t.enter(TurningLeft)
		return true
	case TurnRight:
		t.enter(TurningRight)
		return true
	default:
		return false
	}
}

func (t *Tracker) enter(s State) {
	if t.state != s && t.state != Neutral {
		// A direction flip leaves the old turn first.
		t.reset()
	}
	t.state = s
	t.entered = t.clock.Now()
}

func (t *Tracker) reset() {
	t.state = Neutral
	t.entered = time.Time{}
}

// Tick decays an active turn to Neutral once it has been held strictly
// longer than the ride duration. It never decays at zero elapsed time.
// Decay only updates the tracked state; it does not stop the motors.
//
// It reports whether a decay happened.
func (t *Tracker) Tick() bool {
	if t.state == Neutral {
		return false
	}
	elapsed := t.clock.Since(t.entered)
	if elapsed != 0 && elapsed > t.rideDuration {
		t.reset()
		return true
	}
	return false
}
