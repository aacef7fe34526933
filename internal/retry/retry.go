package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned once every attempt of a Policy has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Sleeper waits between attempts. clock.Clock from github.com/benbjohnson/clock
// satisfies it.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Policy is a bounded, fixed-delay retry budget.
type Policy struct {
	Name     string
	Attempts int
	Delay    time.Duration

	Sleeper Sleeper

	// OnFailure is called after every failed attempt with the zero-based
	// attempt number.
	OnFailure func(attempt int, err error)
}

// Do calls fn until it succeeds or the attempt budget runs out.
//
// The delay is only applied between attempts, never after the last one.
// On exhaustion the returned error wraps both ErrExhausted and the last
// error returned by fn.
func (p Policy) Do(fn func() error) error {
	if fn == nil {
		return errors.New("retry: fn is nil")
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if p.OnFailure != nil {
			p.OnFailure(i, err)
		}
		if i < attempts-1 && p.Delay > 0 {
			sleeper.Sleep(p.Delay)
		}
	}

	name := p.Name
	if name == "" {
		name = "operation"
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, attempts, lastErr)
}
