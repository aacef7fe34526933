package rplidar

import (
	"fmt"

	"go.bug.st/serial"
)

// openSerialPort opens path as 8N1 at the given baud. RPLidar A1/A2 units
// run at 115200; the A3 and newer A2 firmware use 256000.
func openSerialPort(path string, baud int) (Port, error) {
	if path == "" {
		return nil, fmt.Errorf("rplidar: serial path is required")
	}
	if baud <= 0 {
		baud = 256000
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("rplidar: open %s: %w", path, err)
	}
	// DTR high keeps the A1 motor stopped until scanning starts.
	if err := p.SetDTR(true); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("rplidar: set dtr: %w", err)
	}
	return p, nil
}
