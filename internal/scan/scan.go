// Package scan turns raw range-finder samples into a per-degree distance profile.
package scan

import "math"

// Degrees is the number of buckets in a Profile.
const Degrees = 360

// Sample is one raw measurement as reported by the range-finder.
//
// AngleQ14 is fixed point with 90 degrees == 1<<14.
// DistQ2 is millimeters in q2 fixed point (value / 4).
// Quality of zero marks an invalid measurement.
type Sample struct {
	AngleQ14 uint16
	DistQ2   uint32
	Quality  uint8
}

// Degree returns the sample angle rounded to the nearest integer degree in [0, 360).
func (s Sample) Degree() int {
	deg := int(math.Round(float64(s.AngleQ14) * 90.0 / float64(1<<14)))
	deg %= Degrees
	return deg
}

// Millimeters returns the sample distance rounded to whole millimeters.
func (s Sample) Millimeters() int {
	return int(math.Round(float64(s.DistQ2) / 4.0))
}

// Profile holds one distance per integer degree, in millimeters.
// A value of 0 means nothing was seen at that degree.
type Profile [Degrees]int

// Centimeters returns the profile with the last decimal digit of every
// value dropped. Zero stays zero.
func (p Profile) Centimeters() [Degrees]int {
	var out [Degrees]int
	for i, v := range p {
		out[i] = v / 10
	}
	return out
}

// Options tune the aggregation.
type Options struct {
	// BodyOffsetMM is subtracted from every distance to account for the
	// distance between the sensor and the edge of the chassis.
	BodyOffsetMM int
	// NoiseFloorMM: values below it are dropped to 0.
	NoiseFloorMM int
	// MaxDistanceMM caps every value.
	MaxDistanceMM int
}

// DefaultOptions returns the options used on the robot.
func DefaultOptions() Options {
	return Options{
		BodyOffsetMM:  50,
		NoiseFloorMM:  10,
		MaxDistanceMM: 5000,
	}
}

// Aggregator builds profiles from sample batches.
type Aggregator struct {
	opts Options
}

// NewAggregator returns an Aggregator. Zero fields in opts fall back to DefaultOptions.
func NewAggregator(opts Options) *Aggregator {
	def := DefaultOptions()
	if opts.NoiseFloorMM <= 0 {
		opts.NoiseFloorMM = def.NoiseFloorMM
	}
	if opts.MaxDistanceMM <= 0 {
		opts.MaxDistanceMM = def.MaxDistanceMM
	}
	if opts.BodyOffsetMM < 0 {
		opts.BodyOffsetMM = def.BodyOffsetMM
	}
	return &Aggregator{opts: opts}
}

// Options returns the effective options.
func (a *Aggregator) Options() Options {
	return a.opts
}

// Aggregate builds a complete profile from one batch.
//
// When several valid samples land in the same degree the closest one wins.
// The first valid sample for a degree always sets it, whatever its value.
func (a *Aggregator) Aggregate(batch []Sample) Profile {
	var p Profile
	var touched [Degrees]bool

	for _, s := range batch {
		if s.Quality == 0 {
			continue
		}
		deg := s.Degree()
		dist := s.Millimeters() - a.opts.BodyOffsetMM

		if !touched[deg] || dist < p[deg] {
			p[deg] = dist
			touched[deg] = true
		}
	}

	for i, v := range p {
		switch {
		case v < a.opts.NoiseFloorMM:
			// Also catches negative values left over from the body offset.
			p[i] = 0
		case v > a.opts.MaxDistanceMM:
			p[i] = a.opts.MaxDistanceMM
		}
	}
	return p
}
