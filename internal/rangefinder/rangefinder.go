// Package rangefinder owns the connection lifecycle of the rotating
// range-finder: connect with retry, one-shot health check, scan session
// bracketing and bounded scan retrieval.
package rangefinder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"roomba-drone/internal/retry"
	"roomba-drone/internal/scan"
)

var (
	// ErrTimeout is returned by GrabScan when a full rotation did not arrive in
	// time. The returned batch is still usable.
	ErrTimeout = errors.New("rangefinder: scan timeout")
	// ErrDeviceFault means the device reported an internal error.
	ErrDeviceFault = errors.New("rangefinder: device reported internal error")
	// ErrHealthQuery means the health status could not be read.
	ErrHealthQuery = errors.New("rangefinder: health query failed")
)

// HealthStatus as reported by the device.
type HealthStatus int

const (
	HealthGood HealthStatus = iota
	HealthWarning
	HealthError
)

func (h HealthStatus) String() string {
	switch h {
	case HealthGood:
		return "good"
	case HealthWarning:
		return "warning"
	case HealthError:
		return "error"
	default:
		return fmt.Sprintf("HealthStatus(%d)", int(h))
	}
}

// Health is the device health report.
type Health struct {
	Status    HealthStatus
	ErrorCode uint16
}

// Info identifies a connected device.
type Info struct {
	Model        uint8
	Firmware     string
	Hardware     uint8
	SerialNumber string
}

// Device is a range-finder driver.
type Device interface {
	Connect(path string, baud int) error
	Info() (Info, error)
	Health() (Health, error)
	StartScan() error
	StopScan() error
	// GrabScan returns up to maxSamples samples of the most recent rotation.
	// On ErrTimeout the returned samples are a valid partial batch.
	GrabScan(maxSamples int, timeout time.Duration) ([]scan.Sample, error)
	Close() error
}

// Config controls a Source.
type Config struct {
	Path        string
	Baud        int
	MaxSamples  int
	ScanTimeout time.Duration

	ConnectAttempts int
	ConnectDelay    time.Duration
}

// Source wraps a Device with the connection and session rules of the
// control loop.
type Source struct {
	dev    Device
	cfg    Config
	logger *zap.SugaredLogger

	sleeper retry.Sleeper

	scanning  bool
	stopped   bool
	closeOnce sync.Once
	closeErr  error
}

// NewSource returns a Source. A nil sleeper uses real time.
func NewSource(dev Device, cfg Config, logger *zap.SugaredLogger, sleeper retry.Sleeper) (*Source, error) {
	if dev == nil {
		return nil, fmt.Errorf("rangefinder: device is nil")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 8192
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 2 * time.Second
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 900
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = time.Second
	}
	return &Source{dev: dev, cfg: cfg, logger: logger, sleeper: sleeper}, nil
}

// Connect opens the device and reads its info, retrying with a fixed delay.
// Exhausting the attempts is fatal for the caller.
func (s *Source) Connect() (Info, error) {
	var info Info
	s.logger.Infow("connecting to range-finder", "path", s.cfg.Path, "baud", s.cfg.Baud)

	p := retry.Policy{
		Name:     "connect " + s.cfg.Path,
		Attempts: s.cfg.ConnectAttempts,
		Delay:    s.cfg.ConnectDelay,
		Sleeper:  s.sleeper,
		OnFailure: func(attempt int, err error) {
			s.logger.Warnf("failed connecting to range-finder %d/%d: %v", attempt+1, s.cfg.ConnectAttempts, err)
		},
	}
	err := p.Do(func() error {
		if err := s.dev.Connect(s.cfg.Path, s.cfg.Baud); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		got, err := s.dev.Info()
		if err != nil {
			// Release the port so the next attempt can reopen it.
			_ = s.dev.Close()
			return fmt.Errorf("device info: %w", err)
		}
		info = got
		return nil
	})
	if err != nil {
		s.logger.Errorf("cannot bind to serial port %s: %v", s.cfg.Path, err)
		return Info{}, err
	}
	s.logger.Infow("connected to range-finder",
		"model", info.Model,
		"firmware", info.Firmware,
		"hardware", info.Hardware,
		"serial", info.SerialNumber)
	return info, nil
}

// CheckHealth queries the device health once. Both an internal device error
// and a failed query are fatal at startup. Health is not re-polled during the
// run.
func (s *Source) CheckHealth() error {
	h, err := s.dev.Health()
	if err != nil {
		s.logger.Errorf("cannot retrieve range-finder health: %v", err)
		return fmt.Errorf("%w: %w", ErrHealthQuery, err)
	}
	switch h.Status {
	case HealthError:
		s.logger.Errorf("range-finder internal error detected (code %#04x); reboot the device to retry", h.ErrorCode)
		return fmt.Errorf("%w: code %#04x", ErrDeviceFault, h.ErrorCode)
	case HealthWarning:
		s.logger.Warnf("range-finder health warning (code %#04x)", h.ErrorCode)
	}
	return nil
}

// StartScanning begins the scan session. It may only be called once.
func (s *Source) StartScanning() error {
	if s.scanning || s.stopped {
		return fmt.Errorf("rangefinder: scan session already started")
	}
	if err := s.dev.StartScan(); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	s.scanning = true
	s.logger.Infow("detection started")
	return nil
}

// StopScanning ends the scan session started by StartScanning.
func (s *Source) StopScanning() error {
	if !s.scanning {
		return fmt.Errorf("rangefinder: scan session not running")
	}
	s.scanning = false
	s.stopped = true
	if err := s.dev.StopScan(); err != nil {
		return fmt.Errorf("stop scan: %w", err)
	}
	return nil
}

// GrabScan retrieves the next batch. ErrTimeout comes back together with a
// usable partial batch; any other error means no batch this cycle.
func (s *Source) GrabScan() ([]scan.Sample, error) {
	batch, err := s.dev.GrabScan(s.cfg.MaxSamples, s.cfg.ScanTimeout)
	if len(batch) > s.cfg.MaxSamples {
		batch = batch[:s.cfg.MaxSamples]
	}
	return batch, err
}

// Close releases the device handle. Safe to call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.dev.Close()
	})
	return s.closeErr
}
