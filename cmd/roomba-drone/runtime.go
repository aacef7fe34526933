package main

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"roomba-drone/internal/config"
	"roomba-drone/internal/control"
	"roomba-drone/internal/gpio"
	"roomba-drone/internal/motion"
	"roomba-drone/internal/override"
	"roomba-drone/internal/rangefinder"
	"roomba-drone/internal/replay"
	"roomba-drone/internal/rplidar"
	"roomba-drone/internal/scan"
	"roomba-drone/internal/steering"
	"roomba-drone/internal/telemetry"
	"roomba-drone/internal/zones"
)

type runIO struct {
	in          io.Reader
	prompt      io.Writer
	interactive bool
}

// clk is swapped by tests.
var clk clock.Clock = clock.New()

func openDevice(cfg config.Config, logger *zap.SugaredLogger) (rangefinder.Device, error) {
	rf := cfg.RangeFinder
	if rf.Replay.Enable {
		logger.Infow("replaying scans", "path", rf.Replay.Path, "speed", rf.Replay.Speed, "loop", rf.Replay.Loop)
		return replay.OpenPlayer(rf.Replay.Path, replay.PlayerConfig{Speed: rf.Replay.Speed, Loop: rf.Replay.Loop}, clk)
	}
	var dev rangefinder.Device = rplidar.New(rplidar.Config{MotorPWM: rf.MotorPWM}, logger.Named("rplidar"))
	if rf.Record.Enable {
		logger.Infow("recording scans", "path", rf.Record.Path)
		rec, err := replay.NewRecorder(dev, rf.Record.Path, clk, logger.Named("record"))
		if err != nil {
			return nil, fmt.Errorf("scan recorder: %w", err)
		}
		dev = rec
	}
	return dev, nil
}

// run acquires every resource, drives the control loop until it ends and
// releases the resources in reverse order. Startup failures are fatal.
func run(cfg config.Config, logger *zap.SugaredLogger, stop *atomic.Bool, rio runIO) (err error) {
	dev, err := openDevice(cfg, logger)
	if err != nil {
		return err
	}
	rf := cfg.RangeFinder
	source, err := rangefinder.NewSource(dev, rangefinder.Config{
		Path:            rf.Path,
		Baud:            rf.Baud,
		MaxSamples:      rf.MaxSamples,
		ScanTimeout:     rf.ScanTimeout,
		ConnectAttempts: rf.ConnectAttempts,
		ConnectDelay:    rf.ConnectDelay,
	}, logger.Named("rangefinder"), clk)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(source))

	if _, err := source.Connect(); err != nil {
		return err
	}
	if err := source.CheckHealth(); err != nil {
		return err
	}

	sink, err := telemetry.Open(telemetry.Config{
		Backend:      cfg.Telemetry.Backend,
		Path:         cfg.Telemetry.Path,
		MaxSizeMB:    cfg.Telemetry.MaxSizeMB,
		MaxBackups:   cfg.Telemetry.MaxBackups,
		OpenAttempts: cfg.Telemetry.OpenAttempts,
		OpenDelay:    cfg.Telemetry.OpenDelay,
	}, logger.Named("telemetry"), clk)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(sink))

	opener, err := gpio.NewOpener(gpio.Config{
		Backend:      cfg.Motion.Backend,
		Chip:         cfg.Motion.Chip,
		ShellCommand: cfg.Motion.ShellCommand,
	}, logger.Named("gpio"))
	if err != nil {
		return err
	}
	p := cfg.Motion.Pins
	wheels, err := motion.Open(opener, motion.Pins{
		Enable: p.Enable,
		LeftA:  p.LeftA,
		LeftB:  p.LeftB,
		RightA: p.RightA,
		RightB: p.RightB,
	}, logger.Named("motion"))
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(wheels))

	analyzer, err := zones.NewAnalyzer(zones.Config{
		ThresholdMM:    cfg.Obstacle.ThresholdMM,
		SectorWidthDeg: cfg.Obstacle.SectorWidthDeg,
	})
	if err != nil {
		return err
	}

	var cmds control.CommandSource
	if !cfg.Override.Disable && rio.in != nil {
		cmds = override.NewReader(rio.in, rio.prompt, rio.interactive, logger.Named("override"))
	}

	loop, err := control.New(control.Deps{
		Source: source,
		Aggregator: scan.NewAggregator(scan.Options{
			BodyOffsetMM:  cfg.Scan.BodyOffsetMM,
			NoiseFloorMM:  cfg.Scan.NoiseFloorMM,
			MaxDistanceMM: cfg.Scan.MaxDistanceMM,
		}),
		Analyzer: analyzer,
		Tracker:  steering.NewTracker(clk, cfg.Steering.RideDuration),
		Wheels:   wheels,
		Sink:     sink,
		Override: cmds,
		Clock:    clk,
		Logger:   logger.Named("control"),
	})
	if err != nil {
		return err
	}

	if err := source.StartScanning(); err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(source.StopScanning))

	return loop.Run(stop)
}
