// Package control runs the obstacle-avoidance loop: one scan in, at most one
// steering decision out, per cycle.
package control

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"roomba-drone/internal/motion"
	"roomba-drone/internal/override"
	"roomba-drone/internal/rangefinder"
	"roomba-drone/internal/scan"
	"roomba-drone/internal/steering"
	"roomba-drone/internal/telemetry"
	"roomba-drone/internal/zones"
)

// ScanSource yields one batch per call; rangefinder.Source satisfies it.
type ScanSource interface {
	GrabScan() ([]scan.Sample, error)
}

// Actuator executes wheel commands; motion.Wheels satisfies it.
type Actuator interface {
	Do(c motion.Command) error
}

// CommandSource supplies manual commands; override.Reader satisfies it.
type CommandSource interface {
	Poll() (motion.Command, bool, error)
}

// Deps are the loop's collaborators. Override and Sink are optional.
type Deps struct {
	Source     ScanSource
	Aggregator *scan.Aggregator
	Analyzer   *zones.Analyzer
	Tracker    *steering.Tracker
	Wheels     Actuator
	Sink       telemetry.Sink
	Override   CommandSource
	Clock      clock.Clock
	Logger     *zap.SugaredLogger
}

// Cycle describes what one RunCycle did.
type Cycle struct {
	// Scanned is false when the grab failed hard and nothing was decided.
	Scanned    bool
	Partial    bool
	Result     zones.Result
	Action     steering.Action
	Overridden bool
	Decayed    bool
	Movements  []motion.Command
}

type Loop struct {
	d      Deps
	logger *zap.SugaredLogger

	last   scan.Profile
	cycles uint64
}

func New(d Deps) (*Loop, error) {
	if d.Source == nil || d.Aggregator == nil || d.Analyzer == nil || d.Tracker == nil || d.Wheels == nil {
		return nil, errors.New("control: source, aggregator, analyzer, tracker and wheels are required")
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	return &Loop{d: d, logger: d.Logger}, nil
}

// LastProfile is the profile built by the most recent successful grab.
func (l *Loop) LastProfile() scan.Profile {
	return l.last
}

// Cycles counts RunCycle calls.
func (l *Loop) Cycles() uint64 {
	return l.cycles
}

// RunCycle performs one iteration.
//
// The returned error is io.EOF when the scan source is exhausted and
// override.ErrTerminate when the operator quit; both end the loop. Device
// timeouts, hard grab failures, actuator and telemetry errors are logged and
// the cycle carries on.
func (l *Loop) RunCycle() (Cycle, error) {
	l.cycles++
	var c Cycle

	batch, err := l.d.Source.GrabScan()
	switch {
	case err == nil:
		c.Scanned = true
	case errors.Is(err, rangefinder.ErrTimeout):
		c.Scanned = true
		c.Partial = true
		l.logger.Warnw("scan timed out, using partial batch", "samples", len(batch))
	case errors.Is(err, io.EOF):
		return c, io.EOF
	default:
		l.logger.Errorw("scan grab failed", "error", err)
	}

	if c.Scanned {
		l.last = l.d.Aggregator.Aggregate(batch)
	}

	cmd, manual, err := l.pollOverride()
	if err != nil {
		return c, err
	}
	if manual {
		c.Overridden = true
		l.do(&c, cmd)
	} else if c.Scanned {
		c.Result = l.d.Analyzer.Analyze(l.last)
		c.Action = steering.Decide(c.Result.LeftMedian, c.Result.RightMedian)
		l.steer(&c)
	}

	if l.d.Tracker.Tick() {
		c.Decayed = true
		l.logger.Debugw("turn decayed to neutral")
	}

	if c.Scanned && l.d.Sink != nil {
		rec := telemetry.Record{Time: l.d.Clock.Now(), Profile: l.last, Movements: c.Movements}
		if err := l.d.Sink.Write(rec); err != nil {
			l.logger.Warnw("telemetry write failed", "error", err)
		}
	}
	return c, nil
}

func (l *Loop) steer(c *Cycle) {
	prev := l.d.Tracker.State()
	if !l.d.Tracker.Apply(c.Action) {
		return
	}
	cmd := motion.TurnLeft
	if c.Action == steering.TurnRight {
		cmd = motion.TurnRight
	}
	if next := l.d.Tracker.State(); prev != next {
		l.logger.Infow("steering changed", "from", prev.String(), "to", next.String(),
			"left_median", c.Result.LeftMedian, "right_median", c.Result.RightMedian)
	}
	l.do(c, cmd)
}

func (l *Loop) do(c *Cycle, cmd motion.Command) {
	c.Movements = append(c.Movements, cmd)
	if err := l.d.Wheels.Do(cmd); err != nil {
		l.logger.Errorw("actuator command failed", "command", cmd.String(), "error", err)
	}
}

func (l *Loop) pollOverride() (motion.Command, bool, error) {
	if l.d.Override == nil {
		return 0, false, nil
	}
	return l.d.Override.Poll()
}

// Run calls RunCycle until stop is set, the operator quits or the scan source
// is exhausted. stop is checked once per iteration. Those three endings
// return nil.
func (l *Loop) Run(stop *atomic.Bool) error {
	for !stop.Load() {
		_, err := l.RunCycle()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			l.logger.Infow("scan source exhausted")
			return nil
		case errors.Is(err, override.ErrTerminate):
			l.logger.Infow("quit requested")
			return nil
		default:
			return fmt.Errorf("control: cycle %d: %w", l.cycles, err)
		}
	}
	l.logger.Infow("App cancellation initiated")
	return nil
}
