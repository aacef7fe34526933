package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RangeFinder RangeFinderConfig `yaml:"rangefinder"`
	Scan        ScanConfig        `yaml:"scan"`
	Obstacle    ObstacleConfig    `yaml:"obstacle"`
	Steering    SteeringConfig    `yaml:"steering"`
	Motion      MotionConfig      `yaml:"motion"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Override    OverrideConfig    `yaml:"override"`
	Log         LogConfig         `yaml:"log"`
}

type RangeFinderConfig struct {
	Path            string        `yaml:"path"`
	Baud            int           `yaml:"baud"`
	MotorPWM        int           `yaml:"motor_pwm"`
	MaxSamples      int           `yaml:"max_samples"`
	ScanTimeout     time.Duration `yaml:"scan_timeout"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	Record          RecordConfig  `yaml:"record"`
	Replay          ReplayConfig  `yaml:"replay"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type ScanConfig struct {
	BodyOffsetMM  int `yaml:"body_offset_mm"`
	NoiseFloorMM  int `yaml:"noise_floor_mm"`
	MaxDistanceMM int `yaml:"max_distance_mm"`
}

type ObstacleConfig struct {
	ThresholdMM    int `yaml:"threshold_mm"`
	SectorWidthDeg int `yaml:"sector_width_deg"`
}

type SteeringConfig struct {
	RideDuration time.Duration `yaml:"ride_duration"`
}

type MotionConfig struct {
	Backend      string     `yaml:"backend"`
	Chip         string     `yaml:"chip"`
	ShellCommand string     `yaml:"shell_command"`
	Pins         PinsConfig `yaml:"pins"`
}

// PinsConfig holds BCM pin numbers. Zero means "use the default".
type PinsConfig struct {
	Enable int `yaml:"enable"`
	LeftA  int `yaml:"left_a"`
	LeftB  int `yaml:"left_b"`
	RightA int `yaml:"right_a"`
	RightB int `yaml:"right_b"`
}

type TelemetryConfig struct {
	Backend      string        `yaml:"backend"`
	Path         string        `yaml:"path"`
	MaxSizeMB    int           `yaml:"max_size_mb"`
	MaxBackups   int           `yaml:"max_backups"`
	OpenAttempts int           `yaml:"open_attempts"`
	OpenDelay    time.Duration `yaml:"open_delay"`
}

type OverrideConfig struct {
	// Disable stops reading manual commands from stdin.
	Disable bool `yaml:"disable"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File, when set, also writes logs there (rotated).
	File string `yaml:"file"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Default is the configuration used when no file is given.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		// The zero document always validates.
		panic(err)
	}
	return cfg
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) && unknownFields(te) {
			msgs := make([]string, len(te.Errors))
			for i, e := range te.Errors {
				msgs[i] = linePrefix.ReplaceAllString(e, "")
			}
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
		}
		return Config{}, err
	}

	rf := &cfg.RangeFinder
	if rf.Path == "" {
		rf.Path = "/dev/ttyUSB0"
	}
	if rf.Baud <= 0 {
		rf.Baud = 256000
	}
	if rf.MotorPWM < 0 || rf.MotorPWM > 1023 {
		return Config{}, fmt.Errorf("rangefinder.motor_pwm must be within [0, 1023]")
	}
	if rf.MaxSamples <= 0 {
		rf.MaxSamples = 8192
	}
	if rf.ScanTimeout <= 0 {
		rf.ScanTimeout = 2 * time.Second
	}
	if rf.ConnectAttempts <= 0 {
		rf.ConnectAttempts = 900
	}
	if rf.ConnectDelay <= 0 {
		rf.ConnectDelay = 1 * time.Second
	}

	if rf.Record.Enable && rf.Record.Path == "" {
		return Config{}, fmt.Errorf("rangefinder.record.path is required when rangefinder.record.enable is true")
	}
	if rf.Replay.Enable {
		if rf.Replay.Path == "" {
			return Config{}, fmt.Errorf("rangefinder.replay.path is required when rangefinder.replay.enable is true")
		}
		if rf.Replay.Speed == 0 {
			rf.Replay.Speed = 1
		}
		if rf.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("rangefinder.replay.speed must be > 0")
		}
	}
	if rf.Record.Enable && rf.Replay.Enable {
		return Config{}, fmt.Errorf("rangefinder.record and rangefinder.replay cannot both be enabled")
	}

	if cfg.Scan.BodyOffsetMM < 0 {
		return Config{}, fmt.Errorf("scan.body_offset_mm must be >= 0")
	}
	if cfg.Scan.BodyOffsetMM == 0 {
		cfg.Scan.BodyOffsetMM = 50
	}
	if cfg.Scan.NoiseFloorMM <= 0 {
		cfg.Scan.NoiseFloorMM = 10
	}
	if cfg.Scan.MaxDistanceMM <= 0 {
		cfg.Scan.MaxDistanceMM = 5000
	}
	if cfg.Scan.NoiseFloorMM >= cfg.Scan.MaxDistanceMM {
		return Config{}, fmt.Errorf("scan.noise_floor_mm must be below scan.max_distance_mm")
	}

	if cfg.Obstacle.ThresholdMM <= 0 {
		cfg.Obstacle.ThresholdMM = 3000
	}
	if cfg.Obstacle.SectorWidthDeg <= 0 {
		cfg.Obstacle.SectorWidthDeg = 30
	}
	if cfg.Obstacle.SectorWidthDeg >= 180 {
		return Config{}, fmt.Errorf("obstacle.sector_width_deg must be < 180")
	}

	if cfg.Steering.RideDuration <= 0 {
		cfg.Steering.RideDuration = 2 * time.Second
	}

	cfg.Motion.Backend = strings.ToLower(strings.TrimSpace(cfg.Motion.Backend))
	switch cfg.Motion.Backend {
	case "":
		cfg.Motion.Backend = "gpiocdev"
	case "gpiocdev", "periph", "shell", "none":
	default:
		return Config{}, fmt.Errorf("motion.backend must be one of gpiocdev, periph, shell, none")
	}
	if cfg.Motion.ShellCommand == "" {
		cfg.Motion.ShellCommand = "gpio"
	}
	p := &cfg.Motion.Pins
	if p.Enable == 0 {
		p.Enable = 18
	}
	if p.LeftA == 0 {
		p.LeftA = 23
	}
	if p.LeftB == 0 {
		p.LeftB = 24
	}
	if p.RightA == 0 {
		p.RightA = 5
	}
	if p.RightB == 0 {
		p.RightB = 6
	}
	seen := map[int]string{}
	for _, pin := range []struct {
		name string
		num  int
	}{
		{"enable", p.Enable}, {"left_a", p.LeftA}, {"left_b", p.LeftB}, {"right_a", p.RightA}, {"right_b", p.RightB},
	} {
		if pin.num < 0 {
			return Config{}, fmt.Errorf("motion.pins.%s must be >= 0", pin.name)
		}
		if other, dup := seen[pin.num]; dup {
			return Config{}, fmt.Errorf("motion.pins.%s and motion.pins.%s share pin %d", other, pin.name, pin.num)
		}
		seen[pin.num] = pin.name
	}

	cfg.Telemetry.Backend = strings.ToLower(strings.TrimSpace(cfg.Telemetry.Backend))
	switch cfg.Telemetry.Backend {
	case "":
		cfg.Telemetry.Backend = "file"
	case "file", "sqlite":
	default:
		return Config{}, fmt.Errorf("telemetry.backend must be 'file' or 'sqlite'")
	}
	if cfg.Telemetry.Path == "" {
		if cfg.Telemetry.Backend == "sqlite" {
			cfg.Telemetry.Path = "results.db"
		} else {
			cfg.Telemetry.Path = "results.txt"
		}
	}
	if cfg.Telemetry.MaxSizeMB < 0 {
		return Config{}, fmt.Errorf("telemetry.max_size_mb must be >= 0")
	}
	if cfg.Telemetry.MaxSizeMB > 0 && cfg.Telemetry.Backend != "file" {
		return Config{}, fmt.Errorf("telemetry.max_size_mb is only supported with telemetry.backend=file")
	}
	if cfg.Telemetry.OpenAttempts <= 0 {
		cfg.Telemetry.OpenAttempts = 60
	}
	if cfg.Telemetry.OpenDelay <= 0 {
		cfg.Telemetry.OpenDelay = 1 * time.Second
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("log.level must be one of debug, info, warn, error")
	}

	return cfg, nil
}

var linePrefix = regexp.MustCompile(`^line \d+: `)

func unknownFields(te *yaml.TypeError) bool {
	for _, e := range te.Errors {
		if !strings.Contains(e, " not found in type ") {
			return false
		}
	}
	return len(te.Errors) > 0
}
