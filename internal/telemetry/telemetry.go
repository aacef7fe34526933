// Package telemetry persists one record per control cycle.
package telemetry

import (
	"strconv"
	"strings"
	"time"

	"roomba-drone/internal/motion"
	"roomba-drone/internal/scan"
)

// DatetimeLayout is the record timestamp format (local time).
const DatetimeLayout = "2006-01-02 15:04:05"

// Record is one cycle's snapshot.
type Record struct {
	Time    time.Time
	Profile scan.Profile
	// Movements lists the commands issued to the wheels during the cycle.
	Movements []motion.Command
}

// Sink stores records.
type Sink interface {
	Write(r Record) error
	Close() error
}

// Format renders r as a single line (no trailing newline):
//
//	{ "Datetime": "...", "ValueArray": "[d0, ..., d359]", "MovementArray": "[...]" }
//
// ValueArray holds centimeters.
func Format(r Record) string {
	var b strings.Builder
	b.Grow(2048)
	b.WriteString(`{ "Datetime": "`)
	b.WriteString(r.Time.Format(DatetimeLayout))
	b.WriteString(`", "ValueArray": "`)
	b.WriteString(valueArray(r.Profile))
	b.WriteString(`", "MovementArray": "`)
	b.WriteString(movementArray(r.Movements))
	b.WriteString(`" }`)
	return b.String()
}

func valueArray(p scan.Profile) string {
	cm := p.Centimeters()
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range cm {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte(']')
	return b.String()
}

func movementArray(m []motion.Command) string {
	parts := make([]string, len(m))
	for i, c := range m {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
