// Package zones derives per-side obstacle statistics from a distance profile.
package zones

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"roomba-drone/internal/scan"
)

// Sector is a set of degrees watched for obstacles.
type Sector struct {
	Name    string
	degrees []int
}

// NewSector returns a sector covering [from, to] inclusive, walking clockwise
// and wrapping past 359. Extra degrees are added as-is.
func NewSector(name string, from, to int, extra ...int) Sector {
	s := Sector{Name: name}
	seen := make(map[int]bool)
	add := func(d int) {
		d = wrap(d)
		if seen[d] {
			return
		}
		seen[d] = true
		s.degrees = append(s.degrees, d)
	}
	for d := wrap(from); ; d = wrap(d + 1) {
		add(d)
		if d == wrap(to) {
			break
		}
	}
	for _, d := range extra {
		add(d)
	}
	return s
}

func wrap(d int) int {
	return ((d % scan.Degrees) + scan.Degrees) % scan.Degrees
}

// Degrees returns the degrees covered by the sector.
func (s Sector) Degrees() []int {
	return append([]int(nil), s.degrees...)
}

// Contains reports whether deg belongs to the sector.
func (s Sector) Contains(deg int) bool {
	for _, d := range s.degrees {
		if d == deg {
			return true
		}
	}
	return false
}

// RightSector is degrees 0..width.
func RightSector(width int) Sector {
	return NewSector("right", 0, width)
}

// LeftSector is degrees (360-width)..359 plus degree 0.
//
// Degree 0 sits in both sectors so that a reading dead ahead pushes on
// both sides equally.
func LeftSector(width int) Sector {
	return NewSector("left", scan.Degrees-width, scan.Degrees-1, 0)
}

// Median returns the median of values, or 0 for an empty set.
//
// 0 is the "no obstacle on this side" sentinel; real zero distances never
// reach here because the aggregator drops them.
func Median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Median(stats.LoadRawData(values))
	if err != nil {
		return 0
	}
	return m
}

// Result is the outcome of one analysis.
type Result struct {
	LeftSamples  []int
	RightSamples []int
	LeftMedian   float64
	RightMedian  float64
}

// Analyzer collects obstacle samples per sector.
type Analyzer struct {
	left        Sector
	right       Sector
	thresholdMM int
}

// Config for NewAnalyzer.
type Config struct {
	ThresholdMM    int
	SectorWidthDeg int
}

// NewAnalyzer validates cfg and builds the left and right sectors.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.ThresholdMM <= 0 {
		cfg.ThresholdMM = 3000
	}
	if cfg.SectorWidthDeg == 0 {
		cfg.SectorWidthDeg = 30
	}
	if cfg.SectorWidthDeg < 0 || cfg.SectorWidthDeg >= scan.Degrees/2 {
		return nil, fmt.Errorf("zones: sector width %d out of range [1, %d)", cfg.SectorWidthDeg, scan.Degrees/2)
	}
	return &Analyzer{
		left:        LeftSector(cfg.SectorWidthDeg),
		right:       RightSector(cfg.SectorWidthDeg),
		thresholdMM: cfg.ThresholdMM,
	}, nil
}

// Sectors returns the left and right sectors.
func (a *Analyzer) Sectors() (left, right Sector) {
	return a.left, a.right
}

// Analyze returns the left and right medians for p.
func (a *Analyzer) Analyze(p scan.Profile) Result {
	var r Result
	r.LeftSamples = a.collect(p, a.left)
	r.RightSamples = a.collect(p, a.right)
	r.LeftMedian = Median(r.LeftSamples)
	r.RightMedian = Median(r.RightSamples)
	return r
}

func (a *Analyzer) collect(p scan.Profile, s Sector) []int {
	var out []int
	for _, d := range s.degrees {
		v := p[d]
		if v != 0 && v < a.thresholdMM {
			out = append(out, v)
		}
	}
	return out
}
