package station

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/sample"
	"github.com/itohio/gobonsai/pkg/sensor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu  sync.Mutex
	raw map[uint8]uint16
}

func (f *fakeSource) Read(channel uint8) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel >= sensor.Channels {
		return 0, sensor.ErrInvalidChannel
	}
	v, ok := f.raw[channel]
	if !ok {
		return 0, sensor.ErrNoReading
	}
	return v, nil
}

func (f *fakeSource) set(channel uint8, raw uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[channel] = raw
}

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.now += time.Second
	return c.now
}

type fakeIndicator struct {
	calls []bool
}

func (i *fakeIndicator) SetWarning(on bool) error {
	i.calls = append(i.calls, on)
	return nil
}

type fakePublisher struct {
	fields map[int]float64
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, field int, value float64) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.fields == nil {
		p.fields = make(map[int]float64)
	}
	p.fields[field] = value
	return len(p.fields), nil
}

type fakeBatchPublisher struct {
	fakePublisher
	batches int
}

func (p *fakeBatchPublisher) PublishFields(ctx context.Context, fields map[int]float64) (int, error) {
	p.batches++
	p.fields = fields
	return p.batches, nil
}

type recordingDisplay struct {
	shown [][]Report
}

func (d *recordingDisplay) Show(reports []Report) {
	d.shown = append(d.shown, reports)
}

// Default calibration: deciles of 55 raw counts starting at 250,
// saturating at 250 and 800.
func newTestStation(t *testing.T, opts ...Option) (*Station, *fakeSource) {
	t.Helper()
	cfg := config.Default()
	src := &fakeSource{raw: map[uint8]uint16{
		0: 780, // 90%
		1: 70,  // 22.56 C
		2: 550, // 53.76 %RH
	}}
	s, err := New(cfg, src, &fakeClock{}, opts...)
	require.NoError(t, err)
	return s, src
}

func TestNew(t *testing.T) {
	s, _ := newTestStation(t)

	reports := s.Reports()
	require.Len(t, reports, 3)
	assert.Equal(t, "water", reports[0].Name)
	assert.Equal(t, sample.Water, reports[0].Kind)
	assert.Equal(t, "%", reports[0].Unit)
	assert.Equal(t, "temperature", reports[1].Name)
	assert.Equal(t, "humidity", reports[2].Name)

	for _, r := range reports {
		assert.True(t, r.Summary.Empty())
		assert.Empty(t, r.History)
	}
}

func TestNew_DisabledSensors(t *testing.T) {
	cfg := config.Default()
	cfg.Sensors.Humidity.Enabled = false
	cfg.Sensors.Water.Enabled = false

	s, err := New(cfg, nil, &fakeClock{})
	require.NoError(t, err)

	reports := s.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, sample.Temperature, reports[0].Kind)
}

func TestNew_NoClock(t *testing.T) {
	_, err := New(config.Default(), nil, nil)
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	s, _ := newTestStation(t)

	require.NoError(t, s.Sample())

	reports := s.Reports()
	water, temp, hum := reports[0], reports[1], reports[2]

	assert.Equal(t, uint8(90), water.Percentage)
	assert.Equal(t, float32(90), water.Summary.Latest)
	assert.False(t, water.Warning)

	assert.InDelta(t, 22.5586, temp.Summary.Latest, 0.001)
	assert.InDelta(t, 53.7634, hum.Summary.Latest, 0.001)

	for _, r := range reports {
		assert.Equal(t, int64(1), r.Summary.Count)
		assert.Equal(t, int64(1), r.Total)
	}
}

func TestSample_HistoryUsesClock(t *testing.T) {
	s, src := newTestStation(t)

	require.NoError(t, s.Sample())
	src.set(0, 820) // saturates at 100%
	require.NoError(t, s.Sample())

	water := s.Reports()[0]
	present := water.History
	require.Len(t, present, 2)
	assert.Equal(t, float32(90), present[0].Value)
	assert.Equal(t, float32(100), present[1].Value)
	assert.Less(t, present[0].Timestamp, present[1].Timestamp)

	assert.Equal(t, float32(100), water.Max.Value)
	assert.Equal(t, float32(90), water.Min.Value)
	assert.InDelta(t, 95.0, water.Summary.Mean, 1e-9)
}

func TestSample_ReadErrorsSkipSensor(t *testing.T) {
	s, src := newTestStation(t)
	src.mu.Lock()
	delete(src.raw, 2)
	src.mu.Unlock()

	err := s.Sample()
	assert.ErrorIs(t, err, sensor.ErrNoReading)

	reports := s.Reports()
	assert.Equal(t, int64(1), reports[0].Summary.Count)
	assert.Equal(t, int64(1), reports[1].Summary.Count)
	assert.True(t, reports[2].Summary.Empty())
}

func TestSample_UncalibratedWaterSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration.Points = []config.CalibrationPoint{{Lower: 250, Upper: 300}}
	src := &fakeSource{raw: map[uint8]uint16{0: 500, 1: 70, 2: 550}}

	s, err := New(cfg, src, &fakeClock{})
	require.NoError(t, err)

	err = s.Sample()
	assert.ErrorIs(t, err, sample.ErrUncalibrated)
	assert.True(t, s.Reports()[0].Summary.Empty())
	assert.Equal(t, int64(1), s.Reports()[1].Summary.Count)
}

func TestSample_NoSource(t *testing.T) {
	s, err := New(config.Default(), nil, &fakeClock{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Sample(), sensor.ErrNotConnected)
}

func TestWarning(t *testing.T) {
	ind := &fakeIndicator{}
	s, src := newTestStation(t, WithIndicator(ind))

	require.NoError(t, s.Sample())
	assert.False(t, s.Warning())
	assert.Empty(t, ind.calls)

	src.set(0, 360) // 20%, at the warning level
	require.NoError(t, s.Sample())
	assert.True(t, s.Warning())
	assert.True(t, s.Reports()[0].Warning)

	require.NoError(t, s.Sample())
	assert.Equal(t, []bool{true}, ind.calls, "indicator only changes on transitions")

	src.set(0, 420) // 30%
	require.NoError(t, s.Sample())
	assert.False(t, s.Warning())
	assert.Equal(t, []bool{true, false}, ind.calls)
}

func TestProcess(t *testing.T) {
	s, err := New(config.Default(), nil, &fakeClock{})
	require.NoError(t, err)

	require.NoError(t, s.Process(sensor.Reading{Channel: 1, Raw: 70}))
	assert.Equal(t, int64(1), s.Reports()[1].Summary.Count)

	err = s.Process(sensor.Reading{Channel: 9, Raw: 70})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestProcessReadings_Shutdown(t *testing.T) {
	d := &recordingDisplay{}
	s, err := New(config.Default(), nil, &fakeClock{}, WithDisplay(d))
	require.NoError(t, err)

	in := make(chan sensor.Reading, 3)
	in <- sensor.Reading{Channel: 0, Raw: 780}
	in <- sensor.Reading{Channel: 1, Raw: 70}
	in <- sensor.Reading{Channel: 7, Raw: 1}
	close(in)

	s.ProcessReadings(in)
	assert.Len(t, d.shown, 2)

	require.NoError(t, s.Process(sensor.Reading{Channel: 0, Raw: 780}))
	assert.Len(t, d.shown, 2, "no callbacks after the input closed")

	s.ResetShutdown()
	require.NoError(t, s.Process(sensor.Reading{Channel: 0, Raw: 780}))
	assert.Len(t, d.shown, 3)
}

func TestOnUpdate(t *testing.T) {
	s, _ := newTestStation(t)

	var got []Report
	s.OnUpdate(func(reports []Report) {
		got = reports
	})

	require.NoError(t, s.Sample())
	require.Len(t, got, 3)
	assert.Equal(t, uint8(90), got[0].Percentage)
}

func TestFields(t *testing.T) {
	s, _ := newTestStation(t)
	assert.Empty(t, s.Fields())

	require.NoError(t, s.Sample())

	fields := s.Fields()
	assert.Equal(t, 90.0, fields[1])
	assert.InDelta(t, 22.56, fields[2], 1e-4)
	assert.InDelta(t, 53.76, fields[3], 1e-4)
}

func TestPublish(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newTestStation(t, WithPublisher(pub))

	require.NoError(t, s.Publish(context.Background()))
	assert.Nil(t, pub.fields, "nothing to publish before the first sample")

	require.NoError(t, s.Sample())
	require.NoError(t, s.Publish(context.Background()))
	assert.Len(t, pub.fields, 3)
	assert.Equal(t, 90.0, pub.fields[1])
}

func TestPublish_Batch(t *testing.T) {
	pub := &fakeBatchPublisher{}
	s, _ := newTestStation(t, WithPublisher(pub))

	require.NoError(t, s.Sample())
	require.NoError(t, s.Publish(context.Background()))
	assert.Equal(t, 1, pub.batches)
	assert.Len(t, pub.fields, 3)
}

func TestPublish_Error(t *testing.T) {
	boom := errors.New("boom")
	s, _ := newTestStation(t, WithPublisher(&fakePublisher{err: boom}))

	require.NoError(t, s.Sample())
	assert.ErrorIs(t, s.Publish(context.Background()), boom)
}

func TestPublish_NoPublisher(t *testing.T) {
	s, _ := newTestStation(t)
	require.NoError(t, s.Sample())
	assert.NoError(t, s.Publish(context.Background()))
}

func TestRun(t *testing.T) {
	cfg := config.Default()
	cfg.Station.SampleInterval = 5 * time.Millisecond
	cfg.Station.PublishInterval = 20 * time.Millisecond
	src := &fakeSource{raw: map[uint8]uint16{0: 780, 1: 70, 2: 550}}
	pub := &fakeBatchPublisher{}

	s, err := New(cfg, src, &fakeClock{}, WithPublisher(pub))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Greater(t, s.Reports()[0].Summary.Count, int64(1))
	assert.GreaterOrEqual(t, pub.batches, 1)
}

func TestRun_InvalidInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Station.SampleInterval = 0
	s, err := New(cfg, nil, &fakeClock{})
	require.NoError(t, err)
	assert.Error(t, s.Run(context.Background()))
}

func TestCollector(t *testing.T) {
	s, _ := newTestStation(t)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(s)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "no metrics before the first sample")

	require.NoError(t, s.Sample())

	families, err = reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]int)
	for _, f := range families {
		byName[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 3, byName["bonsai_sensor_mean"])
	assert.Equal(t, 3, byName["bonsai_sensor_samples_total"])
	assert.Equal(t, 1, byName["bonsai_water_percentage"])
	assert.Equal(t, 1, byName["bonsai_water_warning"])
}
