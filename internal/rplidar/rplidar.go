// Package rplidar drives a Slamtec RPLidar A-series range-finder over a
// serial line.
//
// Once scanning, a reader goroutine decodes measurement nodes and caches the
// most recent complete rotation; GrabScan hands that rotation to the caller.
package rplidar

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"roomba-drone/internal/rangefinder"
	"roomba-drone/internal/scan"
)

// Port is the subset of go.bug.st/serial.Port the driver uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	ResetInputBuffer() error
}

var openPortFn = openSerialPort

// requestTimeout bounds a single request/response exchange.
var requestTimeout = time.Second

// pollInterval is the serial read timeout of the scan reader; it bounds how
// long StopScan waits for the reader to notice.
var pollInterval = 100 * time.Millisecond

// Config tunes the driver.
type Config struct {
	// MotorPWM > 0 sends the motor PWM command (A2/A3). Zero drives the motor
	// through DTR only (A1).
	MotorPWM int
}

// Driver implements rangefinder.Device.
type Driver struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu       sync.Mutex
	port     Port
	scanning bool

	stopCh    chan struct{}
	doneCh    chan struct{}
	rotations chan []scan.Sample

	partialMu sync.Mutex
	partial   []scan.Sample
	readErr   error
}

var _ rangefinder.Device = (*Driver)(nil)

// New returns an unconnected driver.
func New(cfg Config, logger *zap.SugaredLogger) *Driver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Driver{cfg: cfg, logger: logger}
}

// Connect opens the serial port. An already open port is closed first.
func (d *Driver) Connect(path string, baud int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		_ = d.port.Close()
		d.port = nil
	}
	p, err := openPortFn(path, baud)
	if err != nil {
		return err
	}
	d.port = p
	return nil
}

// Info queries the device identity.
func (d *Driver) Info() (rangefinder.Info, error) {
	b, err := d.request(cmdGetInfo, typeDevInfo, infoLen)
	if err != nil {
		return rangefinder.Info{}, err
	}
	return parseInfo(b)
}

// Health queries the device health.
func (d *Driver) Health() (rangefinder.Health, error) {
	b, err := d.request(cmdGetHealth, typeDevHealth, healthLen)
	if err != nil {
		return rangefinder.Health{}, err
	}
	return parseHealth(b)
}

func (d *Driver) request(cmd byte, wantType byte, wantLen int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil, fmt.Errorf("rplidar: not connected")
	}
	if d.scanning {
		return nil, fmt.Errorf("rplidar: request %#02x while scanning", cmd)
	}
	_ = d.port.ResetInputBuffer()
	if _, err := d.port.Write(encodeRequest(cmd, nil)); err != nil {
		return nil, fmt.Errorf("rplidar: write request %#02x: %w", cmd, err)
	}
	desc, err := readDescriptor(d.port, requestTimeout)
	if err != nil {
		return nil, err
	}
	if desc.dataType != wantType || int(desc.length) != wantLen {
		return nil, fmt.Errorf("rplidar: unexpected response type=%#02x len=%d", desc.dataType, desc.length)
	}
	b := make([]byte, wantLen)
	if err := readFull(d.port, b, requestTimeout); err != nil {
		return nil, err
	}
	return b, nil
}

// StartScan spins the motor up and starts a legacy scan.
func (d *Driver) StartScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return fmt.Errorf("rplidar: not connected")
	}
	if d.scanning {
		return nil
	}
	if err := d.startMotorLocked(); err != nil {
		return err
	}
	_ = d.port.ResetInputBuffer()
	if _, err := d.port.Write(encodeRequest(cmdScan, nil)); err != nil {
		return fmt.Errorf("rplidar: write scan request: %w", err)
	}
	desc, err := readDescriptor(d.port, requestTimeout)
	if err != nil {
		return err
	}
	if desc.dataType != typeMeasurement || desc.length != nodeLen {
		return fmt.Errorf("rplidar: unexpected scan response type=%#02x len=%d", desc.dataType, desc.length)
	}
	if err := d.port.SetReadTimeout(pollInterval); err != nil {
		return fmt.Errorf("rplidar: set read timeout: %w", err)
	}

	d.scanning = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.rotations = make(chan []scan.Sample, 1)
	d.partialMu.Lock()
	d.partial = nil
	d.readErr = nil
	d.partialMu.Unlock()

	go d.readLoop(d.port, d.stopCh, d.doneCh, d.rotations)
	return nil
}

func (d *Driver) startMotorLocked() error {
	if err := d.port.SetDTR(false); err != nil {
		return fmt.Errorf("rplidar: start motor: %w", err)
	}
	if d.cfg.MotorPWM > 0 {
		if _, err := d.port.Write(motorPWMRequest(uint16(d.cfg.MotorPWM))); err != nil {
			return fmt.Errorf("rplidar: set motor pwm: %w", err)
		}
	}
	return nil
}

func (d *Driver) stopMotorLocked() error {
	if d.cfg.MotorPWM > 0 {
		if _, err := d.port.Write(motorPWMRequest(0)); err != nil {
			return fmt.Errorf("rplidar: stop motor pwm: %w", err)
		}
	}
	if err := d.port.SetDTR(true); err != nil {
		return fmt.Errorf("rplidar: stop motor: %w", err)
	}
	return nil
}

// StopScan stops the scan and the motor.
func (d *Driver) StopScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil || !d.scanning {
		return nil
	}
	d.scanning = false
	close(d.stopCh)
	<-d.doneCh

	var errs []error
	if _, err := d.port.Write(encodeRequest(cmdStop, nil)); err != nil {
		errs = append(errs, fmt.Errorf("rplidar: write stop: %w", err))
	}
	// The device needs a moment before it accepts the next command.
	time.Sleep(time.Millisecond)
	if err := d.stopMotorLocked(); err != nil {
		errs = append(errs, err)
	}
	_ = d.port.ResetInputBuffer()
	return errors.Join(errs...)
}

// GrabScan waits for the next complete rotation, sorted by ascending angle.
// On timeout the rotation collected so far is returned with
// rangefinder.ErrTimeout.
func (d *Driver) GrabScan(maxSamples int, timeout time.Duration) ([]scan.Sample, error) {
	d.mu.Lock()
	scanning := d.scanning
	rotations := d.rotations
	done := d.doneCh
	d.mu.Unlock()
	if !scanning {
		return nil, fmt.Errorf("rplidar: not scanning")
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	var batch []scan.Sample
	var err error
	select {
	case batch = <-rotations:
	case <-done:
		d.partialMu.Lock()
		err = d.readErr
		d.partialMu.Unlock()
		if err == nil {
			err = io.EOF
		}
		return nil, err
	case <-t.C:
		d.partialMu.Lock()
		batch = append([]scan.Sample(nil), d.partial...)
		d.partialMu.Unlock()
		err = rangefinder.ErrTimeout
	}

	sort.SliceStable(batch, func(i, j int) bool { return batch[i].AngleQ14 < batch[j].AngleQ14 })
	if maxSamples > 0 && len(batch) > maxSamples {
		batch = batch[:maxSamples]
	}
	return batch, err
}

func (d *Driver) readLoop(p Port, stop <-chan struct{}, done chan<- struct{}, rotations chan []scan.Sample) {
	defer close(done)

	var dec nodeDecoder
	buf := make([]byte, 1024)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := p.Read(buf)
		if err != nil {
			d.partialMu.Lock()
			d.readErr = fmt.Errorf("rplidar: read: %w", err)
			d.partialMu.Unlock()
			d.logger.Errorw("scan reader stopped", "error", err)
			return
		}
		if n == 0 {
			// Read timeout; loop to check stop.
			continue
		}

		dec.feed(buf[:n], func(s scan.Sample, start bool) {
			d.partialMu.Lock()
			defer d.partialMu.Unlock()
			if start && len(d.partial) > 0 {
				publish(rotations, d.partial)
				d.partial = nil
			}
			d.partial = append(d.partial, s)
		})
	}
}

// publish hands a rotation over, replacing one the consumer has not taken yet.
func publish(ch chan []scan.Sample, rot []scan.Sample) {
	select {
	case ch <- rot:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- rot
}

// Close stops any running scan and releases the port.
func (d *Driver) Close() error {
	stopErr := d.StopScan()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return stopErr
	}
	err := d.port.Close()
	d.port = nil
	return errors.Join(stopErr, err)
}

func readDescriptor(p Port, timeout time.Duration) (descriptor, error) {
	deadline := time.Now().Add(timeout)
	if err := p.SetReadTimeout(timeout); err != nil {
		return descriptor{}, fmt.Errorf("rplidar: set read timeout: %w", err)
	}

	// Skip anything until the two sync bytes line up.
	one := make([]byte, 1)
	var prev byte
	for {
		if err := readFullUntil(p, one, deadline); err != nil {
			return descriptor{}, fmt.Errorf("rplidar: waiting for response: %w", err)
		}
		if prev == syncByte && one[0] == syncByte2 {
			break
		}
		prev = one[0]
	}
	rest := make([]byte, descriptorSz-2)
	if err := readFullUntil(p, rest, deadline); err != nil {
		return descriptor{}, fmt.Errorf("rplidar: reading descriptor: %w", err)
	}
	return parseDescriptor(append([]byte{syncByte, syncByte2}, rest...))
}

func readFull(p Port, b []byte, timeout time.Duration) error {
	return readFullUntil(p, b, time.Now().Add(timeout))
}

var errRequestTimeout = errors.New("rplidar: response timeout")

func readFullUntil(p Port, b []byte, deadline time.Time) error {
	got := 0
	for got < len(b) {
		if !time.Now().Before(deadline) {
			return errRequestTimeout
		}
		n, err := p.Read(b[got:])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}
