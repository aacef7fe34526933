//go:build linux

package override

import (
	"os"

	"golang.org/x/sys/unix"
)

// IsTerminal reports whether f is attached to a tty.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
