package sample

import (
	"testing"

	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear_Convert(t *testing.T) {
	tests := []struct {
		name     string
		conv     Linear
		raw      uint16
		expected float32
	}{
		{"identity", Linear{Scale: 1}, 512, 512},
		{"zero", Linear{Scale: 0.3222656}, 0, 0},
		{"temperature", Linear{Scale: 0.3222656}, 70, 22.558592},
		{"humidity", Linear{Scale: 0.0977517}, 1023, 100.0},
		{"offset", Linear{Scale: 0.5, Offset: -10}, 100, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conv.Convert(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 0.001)
		})
	}
}

func TestCalibrated_Convert(t *testing.T) {
	cal := calibrate.New(1000, 0)
	for i := 0; i < calibrate.Points; i++ {
		require.NoError(t, cal.SetPercentageLimit(uint8(i*10), int16((i+1)*100), int16(i*100)))
	}
	conv := Calibrated{Calibrator: cal}

	tests := []struct {
		name     string
		raw      uint16
		expected float32
	}{
		{"low saturation", 0, 0},
		{"first decile", 50, 0},
		{"mid", 450, 40},
		{"upper saturation", 1000, 100},
		{"above int16", 65535, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCalibrated_Uncalibrated(t *testing.T) {
	cal := calibrate.New(1000, 0)
	require.NoError(t, cal.SetPercentageLimit(50, 600, 500))
	conv := Calibrated{Calibrator: cal}

	_, err := conv.Convert(300)
	assert.ErrorIs(t, err, ErrUncalibrated)

	got, err := conv.Convert(550)
	require.NoError(t, err)
	assert.Equal(t, float32(50), got)
}

func TestNewCalibrator(t *testing.T) {
	cfg := config.Default()

	cal, err := NewCalibrator(cfg.Calibration)
	require.NoError(t, err)

	upper, lower := cal.Bounds()
	assert.Equal(t, cfg.Calibration.UpperLimit, upper)
	assert.Equal(t, cfg.Calibration.LowerLimit, lower)

	cfg.Calibration.Points = make([]config.CalibrationPoint, calibrate.Points+1)
	_, err = NewCalibrator(cfg.Calibration)
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "water", Water.String())
	assert.Equal(t, "temperature", Temperature.String())
	assert.Equal(t, "humidity", Humidity.String())
	assert.Equal(t, "kind(7)", Kind(7).String())

	assert.Equal(t, "%", Water.Unit())
	assert.Equal(t, "°C", Temperature.Unit())
	assert.Equal(t, "%", Humidity.Unit())
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 22.56, Round(22.558592, 2), 1e-5)
	assert.InDelta(t, 23.0, Round(22.6, 0), 1e-5)
	assert.InDelta(t, 99.9, Round(99.94, 1), 1e-5)
}
