package rangefinder

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"roomba-drone/internal/retry"
	"roomba-drone/internal/scan"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

type fakeDevice struct {
	connectFailures int
	connectCalls    int
	infoErr         error
	health          Health
	healthErr       error

	startCalls int
	stopCalls  int
	closeCalls int

	batch   []scan.Sample
	grabErr error
}

func (d *fakeDevice) Connect(path string, baud int) error {
	d.connectCalls++
	if d.connectCalls <= d.connectFailures {
		return errors.New("no such device")
	}
	return nil
}

func (d *fakeDevice) Info() (Info, error) {
	if d.infoErr != nil {
		return Info{}, d.infoErr
	}
	return Info{Model: 0x18, Firmware: "1.29", SerialNumber: "ABC"}, nil
}

func (d *fakeDevice) Health() (Health, error) { return d.health, d.healthErr }
func (d *fakeDevice) StartScan() error        { d.startCalls++; return nil }
func (d *fakeDevice) StopScan() error         { d.stopCalls++; return nil }
func (d *fakeDevice) Close() error            { d.closeCalls++; return nil }

func (d *fakeDevice) GrabScan(maxSamples int, timeout time.Duration) ([]scan.Sample, error) {
	return d.batch, d.grabErr
}

func newObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func TestConnect_RetriesThenSucceeds(t *testing.T) {
	dev := &fakeDevice{connectFailures: 3}
	fs := &fakeSleeper{}
	logger, logs := newObservedLogger()

	src, err := NewSource(dev, Config{Path: "/dev/ttyUSB0", Baud: 256000}, logger, fs)
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}
	info, err := src.Connect()
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if info.Firmware != "1.29" {
		t.Fatalf("firmware=%q want 1.29", info.Firmware)
	}
	if dev.connectCalls != 4 {
		t.Fatalf("connect calls=%d want 4", dev.connectCalls)
	}
	if len(fs.slept) != 3 || fs.slept[0] != time.Second {
		t.Fatalf("slept=%v want 3x1s", fs.slept)
	}
	if n := logs.FilterMessageSnippet("failed connecting").Len(); n != 3 {
		t.Fatalf("progress logs=%d want 3", n)
	}
}

func TestConnect_Exhausted(t *testing.T) {
	dev := &fakeDevice{connectFailures: 1000}
	fs := &fakeSleeper{}
	logger, _ := newObservedLogger()

	src, _ := NewSource(dev, Config{Path: "/dev/ttyUSB0", ConnectAttempts: 5, ConnectDelay: time.Second}, logger, fs)
	_, err := src.Connect()
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("err=%v want ErrExhausted", err)
	}
	if dev.connectCalls != 5 {
		t.Fatalf("connect calls=%d want 5", dev.connectCalls)
	}
}

func TestConnect_DefaultBudget(t *testing.T) {
	dev := &fakeDevice{connectFailures: 1000}
	fs := &fakeSleeper{}
	src, _ := NewSource(dev, Config{Path: "/dev/ttyUSB0"}, nil, fs)
	_, _ = src.Connect()
	if dev.connectCalls != 900 {
		t.Fatalf("connect calls=%d want 900", dev.connectCalls)
	}
}

func TestConnect_InfoFailureClosesAndRetries(t *testing.T) {
	dev := &fakeDevice{infoErr: errors.New("bad checksum")}
	src, _ := NewSource(dev, Config{ConnectAttempts: 2}, nil, &fakeSleeper{})
	if _, err := src.Connect(); err == nil {
		t.Fatalf("expected error")
	}
	if dev.closeCalls != 2 {
		t.Fatalf("close calls=%d want 2", dev.closeCalls)
	}
}

func TestCheckHealth(t *testing.T) {
	cases := []struct {
		name    string
		health  Health
		err     error
		wantErr error
	}{
		{name: "Good", health: Health{Status: HealthGood}},
		{name: "WarningAccepted", health: Health{Status: HealthWarning, ErrorCode: 3}},
		{name: "DeviceFault", health: Health{Status: HealthError, ErrorCode: 0x8001}, wantErr: ErrDeviceFault},
		{name: "QueryFailed", err: errors.New("timeout"), wantErr: ErrHealthQuery},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := &fakeDevice{health: tc.health, healthErr: tc.err}
			src, _ := NewSource(dev, Config{}, nil, nil)
			err := src.CheckHealth()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("CheckHealth() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v want %v", err, tc.wantErr)
			}
		})
	}
}

func TestScanSession_StartStopOnce(t *testing.T) {
	dev := &fakeDevice{}
	src, _ := NewSource(dev, Config{}, nil, nil)

	if err := src.StopScanning(); err == nil {
		t.Fatalf("expected error stopping before start")
	}
	if err := src.StartScanning(); err != nil {
		t.Fatalf("StartScanning() error: %v", err)
	}
	if err := src.StartScanning(); err == nil {
		t.Fatalf("expected error on second start")
	}
	if err := src.StopScanning(); err != nil {
		t.Fatalf("StopScanning() error: %v", err)
	}
	if err := src.StartScanning(); err == nil {
		t.Fatalf("expected error restarting a finished session")
	}
	if dev.startCalls != 1 || dev.stopCalls != 1 {
		t.Fatalf("start=%d stop=%d want 1/1", dev.startCalls, dev.stopCalls)
	}
}

func TestGrabScan_TimeoutKeepsBatch(t *testing.T) {
	dev := &fakeDevice{batch: make([]scan.Sample, 12), grabErr: ErrTimeout}
	src, _ := NewSource(dev, Config{}, nil, nil)

	batch, err := src.GrabScan()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v want ErrTimeout", err)
	}
	if len(batch) != 12 {
		t.Fatalf("batch=%d want 12", len(batch))
	}
}

func TestGrabScan_CapsAtMaxSamples(t *testing.T) {
	dev := &fakeDevice{batch: make([]scan.Sample, 20)}
	src, _ := NewSource(dev, Config{MaxSamples: 8}, nil, nil)
	batch, err := src.GrabScan()
	if err != nil {
		t.Fatalf("GrabScan() error: %v", err)
	}
	if len(batch) != 8 {
		t.Fatalf("batch=%d want 8", len(batch))
	}
}

func TestClose_Once(t *testing.T) {
	dev := &fakeDevice{}
	src, _ := NewSource(dev, Config{}, nil, nil)
	_ = src.Close()
	_ = src.Close()
	if dev.closeCalls != 1 {
		t.Fatalf("close calls=%d want 1", dev.closeCalls)
	}
}
