package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itohio/gobonsai/pkg/clock"
	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/sensor"
	"github.com/itohio/gobonsai/pkg/station"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestNormalizeCommand(t *testing.T) {
	out := execute(t, "normalize", "100", "780", "900", "300")
	assert.Equal(t, "100\t0%\n780\t90%\n900\t100%\n300\t0%\n", out)
}

func TestTableCommand(t *testing.T) {
	out := execute(t, "table")
	assert.Contains(t, out, "<=250 -> 0%")
	assert.Contains(t, out, " 90%\t[745, 800)")
	assert.Contains(t, out, "100%\t[800, 855)")
}

func TestRunStation_Once(t *testing.T) {
	cfg := config.Default()
	cfg.Clock.StatePath = filepath.Join(t.TempDir(), "rtc.bin")
	cfg.Station.SampleInterval = 10 * time.Millisecond
	cfg.Mock.SampleRate = time.Hour

	runMock = true
	defer func() { runMock = false }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runStation(ctx, cfg, clock.ResetPowerOn, true))

	state, err := clock.NewFileStore(cfg.Clock.StatePath).Load()
	require.NoError(t, err)
	assert.Equal(t, clock.MagicNumber, state.Magic)

	_, err = os.Stat(cfg.Clock.StatePath)
	assert.NoError(t, err)
}

// lateSource reports ErrNoReading on a channel until it has been polled
// missing times.
type lateSource struct {
	values  map[uint8]uint16
	missing map[uint8]int
	err     error
	reads   map[uint8]int
}

func (s *lateSource) Read(channel uint8) (uint16, error) {
	if s.reads == nil {
		s.reads = map[uint8]int{}
	}
	s.reads[channel]++
	if s.err != nil {
		return 0, s.err
	}
	if s.missing[channel] > 0 {
		s.missing[channel]--
		return 0, sensor.ErrNoReading
	}
	return s.values[channel], nil
}

func TestSensorChannels(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, []uint8{0, 1, 2}, sensorChannels(cfg))

	cfg.Sensors.Temperature.Enabled = false
	assert.Equal(t, []uint8{0, 2}, sensorChannels(cfg))
}

func TestCycle_SamplesOnceAfterLateChannel(t *testing.T) {
	cfg := config.Default()
	src := &lateSource{
		values:  map[uint8]uint16{0: 525, 1: 70, 2: 550},
		missing: map[uint8]int{2: 3},
	}
	clk := clock.New(&clock.MemoryStore{}, func() time.Duration { return time.Second })
	st, err := station.New(cfg, src, clk)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, waitForReadings(ctx, src, sensorChannels(cfg), time.Millisecond))
	assert.Equal(t, 4, src.reads[2])
	assert.Equal(t, 1, src.reads[0])

	require.NoError(t, cycle(ctx, st))

	reports := st.Reports()
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Equal(t, int64(1), r.Summary.Count, r.Name)
	}
	assert.Equal(t, float32(50), reports[0].Summary.Latest)
}

func TestWaitForReadings_Timeout(t *testing.T) {
	src := &lateSource{missing: map[uint8]int{1: 1 << 30}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := waitForReadings(ctx, src, []uint8{0, 1}, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, src.reads[0])
}

func TestWaitForReadings_SourceError(t *testing.T) {
	broken := errors.New("port closed")
	src := &lateSource{err: broken}

	err := waitForReadings(context.Background(), src, []uint8{0}, time.Millisecond)
	assert.ErrorIs(t, err, broken)
}
