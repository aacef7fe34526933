package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"roomba-drone/internal/config"
	"roomba-drone/internal/logging"
	"roomba-drone/internal/override"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when empty)")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
			os.Exit(1)
		}
	}

	logger, logCloser, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	var stop atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infow("signal received, stopping", "signal", sig.String())
		stop.Store(true)
	}()

	logger.Infow("roomba-drone starting", "config", configPath)
	err = run(cfg, logger, &stop, runIO{
		in:          os.Stdin,
		prompt:      os.Stdout,
		interactive: override.IsTerminal(os.Stdin),
	})
	if err != nil {
		logger.Errorw("roomba-drone stopped", "error", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
	logger.Infow("roomba-drone stopped")
	_ = logCloser.Close()
}
