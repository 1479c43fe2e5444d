// Package sample converts raw analog readings into physical values.
package sample

import (
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/config"
)

// ErrUncalibrated is returned when a raw water reading falls between the
// saturation limits but outside every calibrated breakpoint.
var ErrUncalibrated = errors.New("reading outside calibration table")

// Kind identifies what a sensor measures.
type Kind int

const (
	Water Kind = iota
	Temperature
	Humidity
)

func (k Kind) String() string {
	switch k {
	case Water:
		return "water"
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Unit returns the display unit of values of this kind.
func (k Kind) Unit() string {
	switch k {
	case Water, Humidity:
		return "%"
	case Temperature:
		return "°C"
	}
	return ""
}

// Converter turns a raw reading into a value.
type Converter interface {
	Convert(raw uint16) (float32, error)
}

// Linear converts as raw*Scale + Offset.
type Linear struct {
	Scale  float32
	Offset float32
}

// Convert applies the linear transfer function.
func (l Linear) Convert(raw uint16) (float32, error) {
	return float32(raw)*l.Scale + l.Offset, nil
}

// Calibrated converts through a decile table into a percentage.
type Calibrated struct {
	Calibrator *calibrate.Calibrator
}

// Convert returns the water percentage for raw.
func (c Calibrated) Convert(raw uint16) (float32, error) {
	pct, ok := c.Calibrator.Normalize(clampInt16(raw))
	if !ok {
		return 0, fmt.Errorf("%w: raw %d", ErrUncalibrated, raw)
	}
	return float32(pct), nil
}

// NewCalibrator builds the water level calibrator from configuration.
func NewCalibrator(cfg config.CalibrationConfig) (*calibrate.Calibrator, error) {
	table := make([]calibrate.Limit, len(cfg.Points))
	for i, p := range cfg.Points {
		table[i] = calibrate.Limit{Upper: p.Upper, Lower: p.Lower}
	}
	return calibrate.FromTable(cfg.UpperLimit, cfg.LowerLimit, table)
}

// Round rounds v to the given number of decimals for display and publishing.
func Round(v float32, decimals int) float32 {
	mult := math32.Pow(10, float32(decimals))
	return math32.Round(v*mult) / mult
}

func clampInt16(raw uint16) int16 {
	if raw > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(raw)
}
