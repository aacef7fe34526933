// Package gpio provides a single digital output line capability with
// interchangeable backends selected by configuration.
package gpio

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Line is one digital output.
//
// Close should be best-effort and leave the line low.
type Line interface {
	Set(high bool) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
	BackendShell    = "shell"
	BackendNone     = "none"
)

// Config selects and tunes a backend.
type Config struct {
	Backend string
	// Chip is the gpiocdev character device, e.g. "gpiochip0". Empty probes
	// the usual Raspberry Pi chips.
	Chip string
	// ShellCommand is the wiringPi CLI used by the shell backend.
	ShellCommand string
	// Consumer labels requested lines (gpiocdev).
	Consumer string
}

// Opener opens lines by BCM pin number.
type Opener struct {
	cfg    Config
	logger *zap.SugaredLogger
}

var (
	openGPIOCDevFn = openGPIOCDev
	openPeriphFn   = openPeriph
	openShellFn    = openShell
)

// NewOpener validates cfg.
func NewOpener(cfg Config, logger *zap.SugaredLogger) (*Opener, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = BackendGPIOCDev
	}
	switch cfg.Backend {
	case BackendGPIOCDev, BackendPeriph, BackendShell, BackendNone:
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
	if cfg.ShellCommand == "" {
		cfg.ShellCommand = "gpio"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "roomba-drone"
	}
	return &Opener{cfg: cfg, logger: logger}, nil
}

// Backend returns the selected backend name.
func (o *Opener) Backend() string {
	return o.cfg.Backend
}

// Open configures pin as an output driven low.
func (o *Opener) Open(pin int) (Line, error) {
	if pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}
	var (
		l   Line
		err error
	)
	switch o.cfg.Backend {
	case BackendGPIOCDev:
		l, err = openGPIOCDevFn(o.cfg.Chip, pin, o.cfg.Consumer)
	case BackendPeriph:
		l, err = openPeriphFn(pin)
	case BackendShell:
		l, err = openShellFn(o.cfg.ShellCommand, pin)
	default:
		l = NewMemoryLine(pin)
	}
	if err != nil {
		return nil, err
	}
	o.logger.Debugw("gpio line opened", "backend", o.cfg.Backend, "pin", pin)
	return &loggedLine{Line: l, pin: pin, logger: o.logger}, nil
}

type loggedLine struct {
	Line
	pin    int
	logger *zap.SugaredLogger
}

func (l *loggedLine) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	l.logger.Debugw("gpio write", "pin", l.pin, "value", v)
	if err := l.Line.Set(high); err != nil {
		return fmt.Errorf("gpio: write pin %d: %w", l.pin, err)
	}
	return nil
}
