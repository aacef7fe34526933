package gpio

import (
	"fmt"
	"strconv"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	periphOnce    sync.Once
	periphInitErr error
)

func initPeriph() error {
	periphOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			periphInitErr = fmt.Errorf("gpio: periph host init: %w", err)
		}
	})
	return periphInitErr
}

// openPeriph resolves pin through the periph.io registry, which names BCM
// lines by their number.
func openPeriph(pin int) (Line, error) {
	if err := initPeriph(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("gpio: no periph pin found for %d", pin)
	}
	if err := p.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("gpio: configure pin %d as output: %w", pin, err)
	}
	return &periphLine{pin: p}, nil
}

type periphLine struct {
	pin pgpio.PinIO
}

func (l *periphLine) Set(high bool) error {
	lvl := pgpio.Low
	if high {
		lvl = pgpio.High
	}
	return l.pin.Out(lvl)
}

func (l *periphLine) Close() error {
	return l.pin.Out(pgpio.Low)
}
