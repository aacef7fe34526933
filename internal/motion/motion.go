// Package motion drives the robot's two wheel motors through a pair of
// H-bridges sharing one enable line.
package motion

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"roomba-drone/internal/gpio"
)

// Command is a wheel-level motion command.
type Command int

const (
	Stop Command = iota
	Forward
	Reverse
	TurnLeft
	TurnRight
)

func (c Command) String() string {
	switch c {
	case Stop:
		return "Stop"
	case Forward:
		return "Forward"
	case Reverse:
		return "Reverse"
	case TurnLeft:
		return "TurnLeft"
	case TurnRight:
		return "TurnRight"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand maps the exact command names produced by String.
func ParseCommand(s string) (Command, bool) {
	switch strings.TrimSpace(s) {
	case "Stop":
		return Stop, true
	case "Forward":
		return Forward, true
	case "Reverse":
		return Reverse, true
	case "TurnLeft":
		return TurnLeft, true
	case "TurnRight":
		return TurnRight, true
	default:
		return 0, false
	}
}

// HBridge is one motor driven by two direction inputs.
type HBridge struct {
	A gpio.Line
	B gpio.Line
}

func (h HBridge) set(a, b bool) error {
	if err := h.A.Set(a); err != nil {
		return err
	}
	return h.B.Set(b)
}

// Forward drives A high, B low.
func (h HBridge) Forward() error { return h.set(true, false) }

// Reverse drives A low, B high.
func (h HBridge) Reverse() error { return h.set(false, true) }

// Stop drives both inputs low.
func (h HBridge) Stop() error { return h.set(false, false) }

func (h HBridge) Close() error {
	return multierr.Combine(h.A.Close(), h.B.Close())
}

// Pins are BCM numbers.
type Pins struct {
	Enable int
	LeftA  int
	LeftB  int
	RightA int
	RightB int
}

// DefaultPins matches the reference wiring.
func DefaultPins() Pins {
	return Pins{Enable: 18, LeftA: 23, LeftB: 24, RightA: 5, RightB: 6}
}

// Wheels is the left/right motor pair.
type Wheels struct {
	Enable gpio.Line
	Left   HBridge
	Right  HBridge

	logger *zap.SugaredLogger
}

// LineOpener opens one output line; gpio.Opener satisfies it.
type LineOpener interface {
	Open(pin int) (gpio.Line, error)
}

// Open opens every line in pins. Lines opened before a failure are closed.
func Open(o LineOpener, pins Pins, logger *zap.SugaredLogger) (*Wheels, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	order := []int{pins.Enable, pins.LeftA, pins.LeftB, pins.RightA, pins.RightB}
	lines := make([]gpio.Line, 0, len(order))
	for _, pin := range order {
		l, err := o.Open(pin)
		if err != nil {
			for _, opened := range lines {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("motion: open pin %d: %w", pin, err)
		}
		lines = append(lines, l)
	}
	return New(lines[0], HBridge{A: lines[1], B: lines[2]}, HBridge{A: lines[3], B: lines[4]}, logger), nil
}

// New assembles wheels from already opened lines.
func New(enable gpio.Line, left, right HBridge, logger *zap.SugaredLogger) *Wheels {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Wheels{Enable: enable, Left: left, Right: right, logger: logger}
}

func (w *Wheels) drive(left, right func() error) error {
	if err := w.Enable.Set(true); err != nil {
		return err
	}
	if err := right(); err != nil {
		return err
	}
	return left()
}

func (w *Wheels) Forward() error { return w.drive(w.Left.Forward, w.Right.Forward) }

func (w *Wheels) Reverse() error { return w.drive(w.Left.Reverse, w.Right.Reverse) }

// TurnLeft spins in place: right wheel forward, left wheel reverse.
func (w *Wheels) TurnLeft() error { return w.drive(w.Left.Reverse, w.Right.Forward) }

// TurnRight spins in place: right wheel reverse, left wheel forward.
func (w *Wheels) TurnRight() error { return w.drive(w.Left.Forward, w.Right.Reverse) }

// Stop halts both bridges and drops enable. Every line is written even if an
// earlier write fails.
func (w *Wheels) Stop() error {
	return multierr.Combine(w.Right.Stop(), w.Left.Stop(), w.Enable.Set(false))
}

// Do executes c.
func (w *Wheels) Do(c Command) error {
	var err error
	switch c {
	case Forward:
		err = w.Forward()
	case Reverse:
		err = w.Reverse()
	case TurnLeft:
		err = w.TurnLeft()
	case TurnRight:
		err = w.TurnRight()
	case Stop:
		err = w.Stop()
	default:
		return fmt.Errorf("motion: unknown command %v", c)
	}
	if err != nil {
		return fmt.Errorf("motion: %v: %w", c, err)
	}
	w.logger.Debugw("motion command", "command", c.String())
	return nil
}

// Close stops the motors and releases every line.
func (w *Wheels) Close() error {
	return multierr.Combine(
		w.Stop(),
		w.Left.Close(),
		w.Right.Close(),
		w.Enable.Close(),
	)
}
