//go:build !linux || (!arm && !arm64)

package gpio

import "fmt"

func openGPIOCDev(chip string, pin int, consumer string) (Line, error) {
	return nil, fmt.Errorf("gpio: character device backend unsupported on this platform")
}
