package rplidar

import (
	"encoding/binary"
	"fmt"

	"roomba-drone/internal/rangefinder"
	"roomba-drone/internal/scan"
)

// Wire protocol of the RPLidar A-series (legacy, non-express scan).
//
// Request:  0xA5 <cmd> [<size> <payload...> <xor checksum>]
// Response: 0xA5 0x5A <len:30 | mode:2 (LE)> <type> then <len> bytes per answer.

const (
	syncByte     = 0xA5
	syncByte2    = 0x5A
	descriptorSz = 7

	cmdStop      = 0x25
	cmdReset     = 0x40
	cmdScan      = 0x20
	cmdGetInfo   = 0x50
	cmdGetHealth = 0x52
	cmdMotorPWM  = 0xF0

	typeDevInfo     = 0x04
	typeDevHealth   = 0x06
	typeMeasurement = 0x81

	infoLen   = 20
	healthLen = 3
	nodeLen   = 5

	// DefaultMotorPWM is the duty used by A2/A3 units when spinning up.
	DefaultMotorPWM = 660
)

type descriptor struct {
	length   uint32
	sendMode uint8
	dataType uint8
}

// encodeRequest builds a request frame. Commands carrying a payload get the
// size byte and trailing xor checksum.
func encodeRequest(cmd byte, payload []byte) []byte {
	if len(payload) == 0 {
		return []byte{syncByte, cmd}
	}
	out := make([]byte, 0, 4+len(payload))
	out = append(out, syncByte, cmd, byte(len(payload)))
	out = append(out, payload...)

	var sum byte
	for _, b := range out {
		sum ^= b
	}
	return append(out, sum)
}

func motorPWMRequest(pwm uint16) []byte {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], pwm)
	return encodeRequest(cmdMotorPWM, p[:])
}

func parseDescriptor(b []byte) (descriptor, error) {
	if len(b) != descriptorSz {
		return descriptor{}, fmt.Errorf("rplidar: descriptor length %d", len(b))
	}
	if b[0] != syncByte || b[1] != syncByte2 {
		return descriptor{}, fmt.Errorf("rplidar: bad descriptor sync % x", b[:2])
	}
	v := binary.LittleEndian.Uint32(b[2:6])
	return descriptor{
		length:   v & 0x3FFFFFFF,
		sendMode: uint8(v >> 30),
		dataType: b[6],
	}, nil
}

func parseInfo(b []byte) (rangefinder.Info, error) {
	if len(b) != infoLen {
		return rangefinder.Info{}, fmt.Errorf("rplidar: info payload length %d", len(b))
	}
	return rangefinder.Info{
		Model:        b[0],
		Firmware:     fmt.Sprintf("%d.%02d", b[2], b[1]),
		Hardware:     b[3],
		SerialNumber: fmt.Sprintf("%X", b[4:20]),
	}, nil
}

func parseHealth(b []byte) (rangefinder.Health, error) {
	if len(b) != healthLen {
		return rangefinder.Health{}, fmt.Errorf("rplidar: health payload length %d", len(b))
	}
	var status rangefinder.HealthStatus
	switch b[0] {
	case 0:
		status = rangefinder.HealthGood
	case 1:
		status = rangefinder.HealthWarning
	default:
		status = rangefinder.HealthError
	}
	return rangefinder.Health{Status: status, ErrorCode: binary.LittleEndian.Uint16(b[1:3])}, nil
}

// decodeNode decodes one 5-byte measurement node.
//
// ok is false when the check bits do not hold, which means the stream is out
// of alignment. start marks the first node of a new rotation.
func decodeNode(b []byte) (s scan.Sample, start bool, ok bool) {
	if len(b) < nodeLen {
		return scan.Sample{}, false, false
	}
	syncQuality := b[0]
	startFlag := syncQuality & 0x1
	invStartFlag := (syncQuality >> 1) & 0x1
	if startFlag == invStartFlag {
		return scan.Sample{}, false, false
	}
	angleQ6Check := binary.LittleEndian.Uint16(b[1:3])
	if angleQ6Check&0x1 != 1 {
		return scan.Sample{}, false, false
	}
	angleQ6 := uint32(angleQ6Check >> 1)

	s = scan.Sample{
		// q6 degrees -> q14 with 90 degrees == 1<<14.
		AngleQ14: uint16((angleQ6 << 8) / 90),
		DistQ2:   uint32(binary.LittleEndian.Uint16(b[3:5])),
		Quality:  (syncQuality >> 2) << 2,
	}
	return s, startFlag == 1, true
}

// nodeDecoder reassembles nodes from an arbitrary byte stream, dropping bytes
// until the check bits line up again.
type nodeDecoder struct {
	buf []byte
}

func (d *nodeDecoder) feed(p []byte, emit func(s scan.Sample, start bool)) {
	d.buf = append(d.buf, p...)
	i := 0
	for len(d.buf)-i >= nodeLen {
		s, start, ok := decodeNode(d.buf[i : i+nodeLen])
		if !ok {
			i++
			continue
		}
		emit(s, start)
		i += nodeLen
	}
	d.buf = append(d.buf[:0], d.buf[i:]...)
}
