package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	fs := &fakeSleeper{}
	calls := 0
	err := Policy{Attempts: 3, Delay: time.Second, Sleeper: fs}.Do(func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
	if len(fs.slept) != 0 {
		t.Fatalf("slept=%v want none", fs.slept)
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	fs := &fakeSleeper{}
	var failures []int
	calls := 0
	p := Policy{
		Attempts:  5,
		Delay:     time.Second,
		Sleeper:   fs,
		OnFailure: func(attempt int, err error) { failures = append(failures, attempt) },
	}
	err := p.Do(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1}, failures); diff != "" {
		t.Fatalf("failures mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, time.Second}, fs.slept); diff != "" {
		t.Fatalf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestDo_Exhausted(t *testing.T) {
	fs := &fakeSleeper{}
	boom := errors.New("no device")
	calls := 0
	err := Policy{Name: "connect", Attempts: 4, Delay: 250 * time.Millisecond, Sleeper: fs}.Do(func() error {
		calls++
		return boom
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v want ErrExhausted", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want wrapped last error", err)
	}
	if calls != 4 {
		t.Fatalf("calls=%d want 4", calls)
	}
	// No sleep after the final attempt.
	if len(fs.slept) != 3 {
		t.Fatalf("sleeps=%d want 3", len(fs.slept))
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Policy{Sleeper: &fakeSleeper{}}.Do(func() error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
}
