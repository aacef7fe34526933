package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "rangefinder: {}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	rf := cfg.RangeFinder
	if rf.Path != "/dev/ttyUSB0" || rf.Baud != 256000 || rf.MaxSamples != 8192 {
		t.Fatalf("rangefinder=%+v", rf)
	}
	if rf.ScanTimeout != 2*time.Second || rf.ConnectAttempts != 900 || rf.ConnectDelay != time.Second {
		t.Fatalf("rangefinder timing=%+v", rf)
	}
	if cfg.Scan != (ScanConfig{BodyOffsetMM: 50, NoiseFloorMM: 10, MaxDistanceMM: 5000}) {
		t.Fatalf("scan=%+v", cfg.Scan)
	}
	if cfg.Obstacle != (ObstacleConfig{ThresholdMM: 3000, SectorWidthDeg: 30}) {
		t.Fatalf("obstacle=%+v", cfg.Obstacle)
	}
	if cfg.Steering.RideDuration != 2*time.Second {
		t.Fatalf("ride=%s want 2s", cfg.Steering.RideDuration)
	}
	if cfg.Motion.Backend != "gpiocdev" || cfg.Motion.ShellCommand != "gpio" {
		t.Fatalf("motion=%+v", cfg.Motion)
	}
	if cfg.Motion.Pins != (PinsConfig{Enable: 18, LeftA: 23, LeftB: 24, RightA: 5, RightB: 6}) {
		t.Fatalf("pins=%+v", cfg.Motion.Pins)
	}
	tel := cfg.Telemetry
	if tel.Backend != "file" || tel.Path != "results.txt" || tel.OpenAttempts != 60 || tel.OpenDelay != time.Second {
		t.Fatalf("telemetry=%+v", tel)
	}
	if cfg.Log.Level != "info" || cfg.Override.Disable {
		t.Fatalf("log=%+v override=%+v", cfg.Log, cfg.Override)
	}
}

func TestDefault_MatchesEmptyFile(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("empty file=%+v default=%+v", cfg, Default())
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeTempConfig(t, `
rangefinder:
  path: /dev/ttyAMA0
  baud: 115200
  motor_pwm: 660
  scan_timeout: 500ms
obstacle:
  threshold_mm: 1500
motion:
  backend: None
  pins:
    enable: 12
telemetry:
  backend: sqlite
log:
  level: DEBUG
override:
  disable: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RangeFinder.Path != "/dev/ttyAMA0" || cfg.RangeFinder.Baud != 115200 || cfg.RangeFinder.MotorPWM != 660 {
		t.Fatalf("rangefinder=%+v", cfg.RangeFinder)
	}
	if cfg.RangeFinder.ScanTimeout != 500*time.Millisecond {
		t.Fatalf("scan_timeout=%s", cfg.RangeFinder.ScanTimeout)
	}
	if cfg.Obstacle.ThresholdMM != 1500 || cfg.Obstacle.SectorWidthDeg != 30 {
		t.Fatalf("obstacle=%+v", cfg.Obstacle)
	}
	if cfg.Motion.Backend != "none" || cfg.Motion.Pins.Enable != 12 || cfg.Motion.Pins.LeftA != 23 {
		t.Fatalf("motion=%+v", cfg.Motion)
	}
	if cfg.Telemetry.Path != "results.db" {
		t.Fatalf("sqlite default path=%q", cfg.Telemetry.Path)
	}
	if cfg.Log.Level != "debug" || !cfg.Override.Disable {
		t.Fatalf("log=%+v override=%+v", cfg.Log, cfg.Override)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "MotorPWMRange",
			body: "rangefinder:\n  motor_pwm: 2000\n",
			want: "rangefinder.motor_pwm must be within [0, 1023]",
		},
		{
			name: "NegativeBodyOffset",
			body: "scan:\n  body_offset_mm: -1\n",
			want: "scan.body_offset_mm must be >= 0",
		},
		{
			name: "NoiseAboveMax",
			body: "scan:\n  noise_floor_mm: 600\n  max_distance_mm: 500\n",
			want: "scan.noise_floor_mm must be below scan.max_distance_mm",
		},
		{
			name: "SectorWidth",
			body: "obstacle:\n  sector_width_deg: 180\n",
			want: "obstacle.sector_width_deg must be < 180",
		},
		{
			name: "MotionBackend",
			body: "motion:\n  backend: sysfs\n",
			want: "motion.backend must be one of gpiocdev, periph, shell, none",
		},
		{
			name: "DuplicatePins",
			body: "motion:\n  pins:\n    right_b: 18\n",
			want: "motion.pins.enable and motion.pins.right_b share pin 18",
		},
		{
			name: "TelemetryBackend",
			body: "telemetry:\n  backend: kafka\n",
			want: "telemetry.backend must be 'file' or 'sqlite'",
		},
		{
			name: "RotationOnlyForFile",
			body: "telemetry:\n  backend: sqlite\n  max_size_mb: 5\n",
			want: "telemetry.max_size_mb is only supported with telemetry.backend=file",
		},
		{
			name: "LogLevel",
			body: "log:\n  level: trace\n",
			want: "log.level must be one of debug, info, warn, error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_RecordRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "rangefinder:\n  record:\n    enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "rangefinder.record.path is required when rangefinder.record.enable is true")
}

func TestLoad_ReplayRequiresPath(t *testing.T) {
	path := writeTempConfig(t, "rangefinder:\n  replay:\n    enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "rangefinder.replay.path is required when rangefinder.replay.enable is true")
}

func TestLoad_ReplaySpeedDefaultsToOne(t *testing.T) {
	path := writeTempConfig(t, "rangefinder:\n  replay:\n    enable: true\n    path: './x.log'\n    speed: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RangeFinder.Replay.Speed != 1 {
		t.Fatalf("speed=%v want 1", cfg.RangeFinder.Replay.Speed)
	}
}

func TestLoad_ReplayNegativeSpeedRejected(t *testing.T) {
	path := writeTempConfig(t, "rangefinder:\n  replay:\n    enable: true\n    path: './x.log'\n    speed: -1\n")
	_, err := Load(path)
	requireErrEq(t, err, "rangefinder.replay.speed must be > 0")
}

func TestLoad_RecordAndReplayMutuallyExclusive(t *testing.T) {
	path := writeTempConfig(t, "rangefinder:\n  record:\n    enable: true\n    path: './a.log'\n  replay:\n    enable: true\n    path: './b.log'\n")
	_, err := Load(path)
	requireErrEq(t, err, "rangefinder.record and rangefinder.replay cannot both be enabled")
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "rangefinder:\n  port: /dev/ttyUSB0\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field port not found in type config.RangeFinderConfig")
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "roomba-drone.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := Default()
	want.RangeFinder.Record.Path = "./scans.log"
	want.RangeFinder.Replay.Path = "./scans.log"
	want.RangeFinder.Replay.Speed = 1
	if cfg != want {
		t.Fatalf("example file drifted from defaults:\n got=%+v\nwant=%+v", cfg, want)
	}
}
