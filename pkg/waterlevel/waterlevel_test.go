package waterlevel

import (
	"testing"
	"time"

	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/history"
	"github.com/itohio/gobonsai/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefault(t *testing.T, size int) *Monitor {
	t.Helper()
	cal, err := sample.NewCalibrator(config.Default().Calibration)
	require.NoError(t, err)
	return New(cal, size, 20)
}

func TestAdd_MidRange(t *testing.T) {
	tests := []struct {
		raw  uint16
		want uint8
	}{
		{raw: 251, want: 0},
		{raw: 400, want: 20},
		{raw: 525, want: 50},
		{raw: 700, want: 80},
		{raw: 799, want: 90},
		{raw: 800, want: 100},
		{raw: 100, want: 0},
		{raw: 60000, want: 100},
	}

	for _, tt := range tests {
		m := newDefault(t, 4)
		pct, ok := m.Add(tt.raw, time.Second)
		assert.True(t, ok, "raw %d", tt.raw)
		assert.Equal(t, tt.want, pct, "raw %d", tt.raw)

		latest := m.Latest()
		assert.True(t, latest.Present)
		assert.Equal(t, float32(tt.want), latest.Value)
		assert.Equal(t, time.Second, latest.Timestamp)
	}
}

func TestWarning_FollowsMean(t *testing.T) {
	m := newDefault(t, 3)
	assert.False(t, m.Warning())
	assert.Equal(t, history.NoData, m.Mean())

	steps := []struct {
		raw     uint16
		mean    float32
		warning bool
	}{
		{raw: 780, mean: 90, warning: false},
		{raw: 260, mean: 45, warning: false},
		{raw: 260, mean: 30, warning: false},
		{raw: 260, mean: 0, warning: true}, // 780 evicted
		{raw: 420, mean: 10, warning: true},
		{raw: 530, mean: 80.0 / 3, warning: false},
	}

	for i, s := range steps {
		_, ok := m.Add(s.raw, time.Duration(i)*time.Second)
		require.True(t, ok)
		assert.InDelta(t, s.mean, m.Mean(), 0.001, "step %d", i)
		assert.Equal(t, s.warning, m.Warning(), "step %d", i)
	}
}

func TestAdd_Uncalibrated(t *testing.T) {
	m := New(calibrate.New(800, 250), 4, 20)

	for _, raw := range []uint16{251, 400, 525, 700, 799} {
		pct, ok := m.Add(raw, time.Second)
		assert.False(t, ok, "raw %d", raw)
		assert.Equal(t, uint8(0), pct)
	}
	assert.False(t, m.Latest().Present)
	assert.False(t, m.Warning())

	_, ok := m.Add(200, time.Second)
	require.True(t, ok)
	assert.True(t, m.Warning())
}
