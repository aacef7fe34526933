package replay

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"roomba-drone/internal/rangefinder"
	"roomba-drone/internal/scan"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// PlayerConfig tunes playback.
//
// Speed: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
type PlayerConfig struct {
	Speed float64
	Loop  bool
}

// Player is a rangefinder.Device that serves recorded batches with their
// relative timing. Once the log is exhausted (and Loop is off) GrabScan
// returns io.EOF.
type Player struct {
	cfg     PlayerConfig
	records []Record
	sleeper Sleeper

	mu        sync.Mutex
	connected bool
	scanning  bool
	next      int
	origin    time.Duration
	lastAt    time.Duration
	haveLast  bool
}

var _ rangefinder.Device = (*Player)(nil)

// NewPlayer validates cfg and records.
func NewPlayer(records []Record, cfg PlayerConfig, sleeper Sleeper) (*Player, error) {
	if cfg.Speed <= 0 {
		return nil, fmt.Errorf("replay: speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	batches := 0
	for _, r := range records {
		if !r.Start {
			batches++
		}
	}
	if batches == 0 {
		return nil, errors.New("replay: no batches")
	}
	return &Player{cfg: cfg, records: records, sleeper: sleeper}, nil
}

// OpenPlayer reads the log at path.
func OpenPlayer(path string, cfg PlayerConfig, sleeper Sleeper) (*Player, error) {
	recs, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read %s: %w", path, err)
	}
	return NewPlayer(recs, cfg, sleeper)
}

func (p *Player) Connect(path string, baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *Player) Info() (rangefinder.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return rangefinder.Info{}, errors.New("replay: not connected")
	}
	return rangefinder.Info{Firmware: "replay"}, nil
}

func (p *Player) Health() (rangefinder.Health, error) {
	return rangefinder.Health{Status: rangefinder.HealthGood}, nil
}

func (p *Player) StartScan() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanning = true
	return nil
}

func (p *Player) StopScan() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanning = false
	return nil
}

// GrabScan returns the next recorded batch after waiting out the recorded gap
// since the previous one. timeout is ignored.
func (p *Player) GrabScan(maxSamples int, timeout time.Duration) ([]scan.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.scanning {
		return nil, errors.New("replay: not scanning")
	}

	for {
		if p.next >= len(p.records) {
			if !p.cfg.Loop {
				return nil, io.EOF
			}
			p.next = 0
			p.origin = 0
			p.haveLast = false
		}
		r := p.records[p.next]
		p.next++
		if r.Start {
			p.origin = r.At
			p.lastAt = 0
			p.haveLast = false
			continue
		}

		at := r.At - p.origin
		if at < 0 {
			at = 0
		}
		if p.haveLast {
			wait := at - p.lastAt
			if wait < 0 {
				wait = 0
			}
			wait = time.Duration(float64(wait) / p.cfg.Speed)
			if wait > 0 {
				p.sleeper.Sleep(wait)
			}
		}
		p.lastAt = at
		p.haveLast = true

		batch := append([]scan.Sample(nil), r.Batch...)
		if maxSamples > 0 && len(batch) > maxSamples {
			batch = batch[:maxSamples]
		}
		return batch, nil
	}
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanning = false
	p.connected = false
	return nil
}
