package gpio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// shellTimeout bounds one invocation of the GPIO CLI.
var shellTimeout = 2 * time.Second

// runCommandFn runs name with args and returns combined output.
var runCommandFn = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// openShell drives pins through the wiringPi "gpio" CLI using BCM numbering,
// the way the robot's first prototype was wired.
func openShell(command string, pin int) (Line, error) {
	l := &shellLine{command: command, pin: strconv.Itoa(pin)}
	if err := l.run("mode", l.pin, "out"); err != nil {
		return nil, err
	}
	if err := l.Set(false); err != nil {
		return nil, err
	}
	return l, nil
}

type shellLine struct {
	command string
	pin     string
}

func (l *shellLine) run(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), shellTimeout)
	defer cancel()
	full := append([]string{"-g"}, args...)
	out, err := runCommandFn(ctx, l.command, full...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("gpio: %s %s: %w: %s", l.command, strings.Join(full, " "), err, msg)
		}
		return fmt.Errorf("gpio: %s %s: %w", l.command, strings.Join(full, " "), err)
	}
	return nil
}

func (l *shellLine) Set(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	return l.run("write", l.pin, v)
}

func (l *shellLine) Close() error {
	return l.Set(false)
}
