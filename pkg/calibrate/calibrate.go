// Package calibrate maps raw analog readings to a 0-100 percentage using a
// manually calibrated table of decile breakpoints.
package calibrate

import (
	"errors"
	"fmt"
)

// Points is the number of breakpoints: 0%, 10%, ... 100%.
const Points = 11

// ErrPercentageOutOfRange is returned when a percentage maps past the last breakpoint.
var ErrPercentageOutOfRange = errors.New("percentage out of range")

// Limit is the raw range [Lower, Upper) assigned to one decile.
type Limit struct {
	Upper int16
	Lower int16
}

// Calibrator converts raw readings to percentages.
//
// The table is expected to hold ordered, non-overlapping ranges. It is not
// validated; when ranges overlap the highest decile wins.
type Calibrator struct {
	upper int16
	lower int16
	table [Points]Limit
}

// New creates a calibrator saturating at upper (100%) and lower (0%).
// All breakpoints start as empty ranges.
func New(upper, lower int16) *Calibrator {
	return &Calibrator{
		upper: upper,
		lower: lower,
	}
}

// FromTable creates a calibrator and fills breakpoints from table, where
// table[i] describes decile i.
func FromTable(upper, lower int16, table []Limit) (*Calibrator, error) {
	if len(table) > Points {
		return nil, fmt.Errorf("calibration table has %d points (max %d)", len(table), Points)
	}

	c := New(upper, lower)
	copy(c.table[:], table)
	return c, nil
}

// Bounds returns the saturation limits.
func (c *Calibrator) Bounds() (upper, lower int16) {
	return c.upper, c.lower
}

// SetPercentageLimit sets the raw range of the decile containing percentage.
func (c *Calibrator) SetPercentageLimit(percentage uint8, upper, lower int16) error {
	idx := int(percentage / 10)
	if idx >= Points {
		return fmt.Errorf("%w: %d%%", ErrPercentageOutOfRange, percentage)
	}
	c.table[idx] = Limit{Upper: upper, Lower: lower}
	return nil
}

// Limits returns the raw range of the decile containing percentage.
func (c *Calibrator) Limits(percentage uint8) (Limit, error) {
	idx := int(percentage / 10)
	if idx >= Points {
		return Limit{}, fmt.Errorf("%w: %d%%", ErrPercentageOutOfRange, percentage)
	}
	return c.table[idx], nil
}

// Table returns a copy of all breakpoints.
func (c *Calibrator) Table() [Points]Limit {
	return c.table
}

// Normalize returns the percentage (a multiple of 10) for raw.
// The second result is false when raw is inside the bounds but matches no
// breakpoint; the percentage is 0 in that case.
func (c *Calibrator) Normalize(raw int16) (uint8, bool) {
	if raw >= c.upper {
		return 100, true
	}
	if raw <= c.lower {
		return 0, true
	}

	for i := Points - 1; i >= 0; i-- {
		l := c.table[i]
		if raw >= l.Lower && raw < l.Upper {
			return uint8(i * 10), true
		}
	}

	return 0, false
}
