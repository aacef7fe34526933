package motion

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"roomba-drone/internal/gpio"
)

type rig struct {
	en, la, lb, ra, rb *gpio.MemoryLine
	w                  *Wheels
}

func newRig() *rig {
	r := &rig{
		en: gpio.NewMemoryLine(18),
		la: gpio.NewMemoryLine(23),
		lb: gpio.NewMemoryLine(24),
		ra: gpio.NewMemoryLine(5),
		rb: gpio.NewMemoryLine(6),
	}
	r.w = New(r.en, HBridge{A: r.la, B: r.lb}, HBridge{A: r.ra, B: r.rb}, nil)
	return r
}

// levels returns enable, leftA, leftB, rightA, rightB.
func (r *rig) levels() [5]bool {
	return [5]bool{r.en.High(), r.la.High(), r.lb.High(), r.ra.High(), r.rb.High()}
}

func TestWheels_PinPatterns(t *testing.T) {
	cases := []struct {
		cmd  Command
		want [5]bool
	}{
		{Forward, [5]bool{true, true, false, true, false}},
		{Reverse, [5]bool{true, false, true, false, true}},
		{TurnLeft, [5]bool{true, false, true, true, false}},
		{TurnRight, [5]bool{true, true, false, false, true}},
		{Stop, [5]bool{false, false, false, false, false}},
	}
	for _, tc := range cases {
		r := newRig()
		// Start from a non-idle state so Stop has something to undo.
		_ = r.w.Forward()
		if err := r.w.Do(tc.cmd); err != nil {
			t.Fatalf("Do(%v): %v", tc.cmd, err)
		}
		if got := r.levels(); got != tc.want {
			t.Fatalf("%v levels=%v want %v", tc.cmd, got, tc.want)
		}
	}
}

func TestWheels_UnknownCommand(t *testing.T) {
	r := newRig()
	if err := r.w.Do(Command(42)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWheels_StopWritesEveryLineOnError(t *testing.T) {
	r := newRig()
	_ = r.w.Forward()
	boom := errors.New("boom")
	r.ra.Err = boom

	err := r.w.Stop()
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if r.en.High() || r.la.High() {
		t.Fatalf("enable=%v leftA=%v want both low", r.en.High(), r.la.High())
	}
}

func TestWheels_CloseStopsAndReleases(t *testing.T) {
	r := newRig()
	_ = r.w.TurnLeft()
	if err := r.w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i, l := range []*gpio.MemoryLine{r.en, r.la, r.lb, r.ra, r.rb} {
		if !l.Closed() || l.High() {
			t.Fatalf("line %d closed=%v high=%v", i, l.Closed(), l.High())
		}
	}
}

func TestCommand_StringParse(t *testing.T) {
	for _, c := range []Command{Stop, Forward, Reverse, TurnLeft, TurnRight} {
		got, ok := ParseCommand(c.String())
		if !ok || got != c {
			t.Fatalf("ParseCommand(%q)=%v,%v", c.String(), got, ok)
		}
	}
	if _, ok := ParseCommand("forward"); ok {
		t.Fatalf("command names are case sensitive")
	}
}

type fakeOpener struct {
	opened []int
	lines  []*gpio.MemoryLine
	failAt int
}

func (o *fakeOpener) Open(pin int) (gpio.Line, error) {
	if pin == o.failAt {
		return nil, errors.New("busy")
	}
	o.opened = append(o.opened, pin)
	l := gpio.NewMemoryLine(pin)
	o.lines = append(o.lines, l)
	return l, nil
}

func TestOpen_DefaultPins(t *testing.T) {
	o := &fakeOpener{failAt: -1}
	w, err := Open(o, DefaultPins(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if diff := cmp.Diff([]int{18, 23, 24, 5, 6}, o.opened); diff != "" {
		t.Fatalf("pins mismatch (-want +got):\n%s", diff)
	}
	if err := w.Do(Forward); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestOpen_ClosesOnFailure(t *testing.T) {
	o := &fakeOpener{failAt: 5}
	if _, err := Open(o, DefaultPins(), nil); err == nil {
		t.Fatalf("expected error")
	}
	for _, l := range o.lines {
		if !l.Closed() {
			t.Fatalf("pin %d left open", l.Pin)
		}
	}
}
