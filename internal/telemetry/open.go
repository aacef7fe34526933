package telemetry

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"roomba-drone/internal/retry"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and tunes the sink.
type Config struct {
	Backend string
	Path    string
	// MaxSizeMB > 0 rotates the file backend at that size.
	MaxSizeMB  int
	MaxBackups int

	OpenAttempts int
	OpenDelay    time.Duration
}

const (
	DefaultPath         = "results.txt"
	DefaultOpenAttempts = 60
	DefaultOpenDelay    = time.Second
)

var (
	openFileFn   = func(cfg Config) (Sink, error) { return openFile(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups) }
	openSQLiteFn = func(cfg Config) (Sink, error) { return openSQLite(cfg.Path) }
)

// Open opens the configured sink, retrying with a fixed delay. Exhaustion
// wraps retry.ErrExhausted.
func Open(cfg Config, logger *zap.SugaredLogger, sleeper retry.Sleeper) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.OpenAttempts <= 0 {
		cfg.OpenAttempts = DefaultOpenAttempts
	}
	if cfg.OpenDelay <= 0 {
		cfg.OpenDelay = DefaultOpenDelay
	}

	var open func(Config) (Sink, error)
	switch backend {
	case BackendFile:
		open = openFileFn
	case BackendSQLite:
		open = openSQLiteFn
	default:
		return nil, fmt.Errorf("telemetry: unknown backend %q", cfg.Backend)
	}

	var sink Sink
	p := retry.Policy{
		Name:     "telemetry open",
		Attempts: cfg.OpenAttempts,
		Delay:    cfg.OpenDelay,
		Sleeper:  sleeper,
		OnFailure: func(attempt int, err error) {
			logger.Warnw(fmt.Sprintf("failed opening %s %d/%d", cfg.Path, attempt+1, cfg.OpenAttempts), "error", err)
		},
	}
	err := p.Do(func() error {
		s, err := open(cfg)
		if err != nil {
			return err
		}
		sink = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("telemetry sink opened", "backend", backend, "path", cfg.Path)
	return sink, nil
}
