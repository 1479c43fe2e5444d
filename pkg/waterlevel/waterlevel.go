// Package waterlevel turns raw water sensor readings into calibrated levels
// and decides when the low water warning is due. It only depends on the core
// packages so the firmware can run it on the board.
package waterlevel

import (
	"time"

	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/history"
)

const maxRaw = 1<<15 - 1

// Monitor keeps recent water levels and the warning state derived from
// their mean.
type Monitor struct {
	cal       *calibrate.Calibrator
	levels    *history.Ring
	threshold uint8
	warning   bool
}

// New creates a monitor keeping size levels. The warning is raised while the
// mean level is at or below threshold percent.
func New(cal *calibrate.Calibrator, size int, threshold uint8) *Monitor {
	return &Monitor{
		cal:       cal,
		levels:    history.New(size),
		threshold: threshold,
	}
}

// Add normalizes raw and records the level at ts. It returns false when raw
// matches no breakpoint, in which case nothing is recorded and the warning
// state is unchanged.
func (m *Monitor) Add(raw uint16, ts time.Duration) (uint8, bool) {
	if raw > maxRaw {
		raw = maxRaw
	}
	pct, ok := m.cal.Normalize(int16(raw))
	if !ok {
		return 0, false
	}

	m.levels.Add(float32(pct), ts)
	m.warning = m.levels.Mean() <= float32(m.threshold)
	return pct, true
}

// Warning reports whether the mean level is at or below the threshold.
// It is false until the first level is recorded.
func (m *Monitor) Warning() bool {
	return m.warning
}

// Mean returns the mean of the retained levels, or history.NoData.
func (m *Monitor) Mean() float32 {
	return m.levels.Mean()
}

// Latest returns the last recorded level.
func (m *Monitor) Latest() history.Sample {
	return m.levels.Latest()
}
