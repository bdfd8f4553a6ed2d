// Package derive computes values that are required downstream but may be
// missing from source documents.
package derive

import (
	"math"

	"github.com/raphaelgruber/portalsync/internal/models"
)

// DefaultGBPerHour is the empirically calibrated video size per hour of footage.
const DefaultGBPerHour = 15.0

const (
	secondsPerHour = 3600.0
	bytesPerGB     = 1e9
)

// Calculator resolves media durations. The zero value uses DefaultGBPerHour.
type Calculator struct {
	GBPerHour float64
}

// NewCalculator returns a calculator with the given GB/hour constant, or the
// default when gbPerHour is not a positive finite number.
func NewCalculator(gbPerHour float64) Calculator {
	if !usableRate(gbPerHour) {
		gbPerHour = DefaultGBPerHour
	}
	return Calculator{GBPerHour: gbPerHour}
}

func (c Calculator) gbPerHour() float64 {
	if !usableRate(c.GBPerHour) {
		return DefaultGBPerHour
	}
	return c.GBPerHour
}

// NaN fails the comparison.
func usableRate(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// DeriveDuration returns the media duration in hours and whether it was
// estimated from size. Precedence: explicit hours, explicit seconds, size in GB,
// size in bytes. Returns nil when nothing is known; such media still count as
// items but not towards hour totals.
func (c Calculator) DeriveDuration(m *models.Media) (*float64, bool) {
	switch {
	case m.DurationHours != nil:
		h := *m.DurationHours
		return &h, false
	case m.DurationSeconds != nil:
		h := *m.DurationSeconds / secondsPerHour
		return &h, false
	case m.SizeGB != nil:
		h := *m.SizeGB / c.gbPerHour()
		return &h, true
	case m.SizeBytes != nil:
		h := float64(*m.SizeBytes) / bytesPerGB / c.gbPerHour()
		return &h, true
	}
	return nil, false
}

// Apply stores the derived duration on m.
func (c Calculator) Apply(m *models.Media) {
	m.ResolvedHours, m.HoursDerived = c.DeriveDuration(m)
}
