//go:build !linux

package override

import "os"

// IsTerminal always reports false off Linux; the prompt is then never shown.
func IsTerminal(f *os.File) bool {
	return false
}
