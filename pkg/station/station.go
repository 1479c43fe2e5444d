// Package station samples the plant sensors, keeps their statistics and
// history, drives the low-water warning and publishes averages.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/history"
	"github.com/itohio/gobonsai/pkg/publish"
	"github.com/itohio/gobonsai/pkg/sample"
	"github.com/itohio/gobonsai/pkg/sensor"
	"github.com/itohio/gobonsai/pkg/stats"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownChannel is returned for readings from a channel no sensor is
// assigned to.
var ErrUnknownChannel = errors.New("no sensor on channel")

// Clock reports elapsed time across sleep cycles.
type Clock interface {
	Now() time.Duration
}

// Display shows the latest reports.
type Display interface {
	Show(reports []Report)
}

// Indicator is the low-water warning output.
type Indicator interface {
	SetWarning(on bool) error
}

// Report is a snapshot of one sensor.
type Report struct {
	Name       string
	Kind       sample.Kind
	Unit       string
	Channel    uint8
	Summary    stats.Summary
	Max        history.Sample // All-time extremes of the history
	Min        history.Sample
	Total      int64 // Samples ever recorded, wraps to 1
	Percentage uint8 // Water level, water sensor only
	Warning    bool
	History    []history.Sample // Oldest first
}

type sensorState struct {
	name    string
	kind    sample.Kind
	channel uint8
	field   int
	conv    sample.Converter
	stats   *stats.Running
	history *history.Ring
}

// Station owns one accumulator and one history per enabled sensor.
type Station struct {
	cfg       config.StationConfig
	src       sensor.Source
	clock     Clock
	indicator Indicator
	publisher publish.Publisher

	sensors []*sensorState
	warning bool

	mu sync.RWMutex

	callbacks []func(reports []Report)
	cbMu      sync.RWMutex

	shutdown bool // Set when the readings channel closes
}

// Option configures a Station.
type Option func(*Station)

// WithDisplay shows reports on d after every update.
func WithDisplay(d Display) Option {
	return func(s *Station) {
		s.callbacks = append(s.callbacks, d.Show)
	}
}

// WithIndicator drives the warning output.
func WithIndicator(i Indicator) Option {
	return func(s *Station) {
		s.indicator = i
	}
}

// WithPublisher enables publishing.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Station) {
		s.publisher = p
	}
}

// New creates a station for the sensors enabled in cfg. src may be nil when
// readings are only pushed through Process.
func New(cfg *config.Config, src sensor.Source, clk Clock, opts ...Option) (*Station, error) {
	if clk == nil {
		return nil, fmt.Errorf("station needs a clock")
	}

	s := &Station{
		cfg:   cfg.Station,
		src:   src,
		clock: clk,
	}

	if cfg.Sensors.Water.Enabled {
		cal, err := sample.NewCalibrator(cfg.Calibration)
		if err != nil {
			return nil, fmt.Errorf("water calibration: %w", err)
		}
		s.add(sample.Water, cfg.Sensors.Water, sample.Calibrated{Calibrator: cal})
	}
	if cfg.Sensors.Temperature.Enabled {
		s.add(sample.Temperature, cfg.Sensors.Temperature, linear(cfg.Sensors.Temperature))
	}
	if cfg.Sensors.Humidity.Enabled {
		s.add(sample.Humidity, cfg.Sensors.Humidity, linear(cfg.Sensors.Humidity))
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func linear(c config.SensorConfig) sample.Converter {
	return sample.Linear{Scale: c.Scale, Offset: c.Offset}
}

func (s *Station) add(kind sample.Kind, c config.SensorConfig, conv sample.Converter) {
	if c.Channel >= sensor.Channels {
		log.WithField("sensor", kind).Warnf("channel %d out of range, sensor disabled", c.Channel)
		return
	}
	s.sensors = append(s.sensors, &sensorState{
		name:    kind.String(),
		kind:    kind,
		channel: c.Channel,
		field:   c.Field,
		conv:    conv,
		stats:   stats.New(),
		history: history.New(s.cfg.HistorySize),
	})
}

// OnUpdate registers a callback invoked with fresh reports after every update.
// The callback should copy what it needs and return quickly.
func (s *Station) OnUpdate(callback func(reports []Report)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Sample polls every sensor once, oversampling each channel, and records the
// results. Sensors that fail are skipped; their errors are returned joined.
func (s *Station) Sample() error {
	if s.src == nil {
		return sensor.ErrNotConnected
	}

	var errs []error
	for _, ss := range s.sensors {
		raw, err := sample.Oversample(s.src, ss.channel, s.cfg.Oversample)
		if err != nil {
			log.WithError(err).WithField("sensor", ss.name).Warn("read failed")
			errs = append(errs, fmt.Errorf("%s: %w", ss.name, err))
			continue
		}
		if err := s.record(ss, raw); err != nil {
			errs = append(errs, err)
		}
	}

	s.notify()
	return errors.Join(errs...)
}

// Process records one pushed reading.
func (s *Station) Process(r sensor.Reading) error {
	ss := s.lookup(r.Channel)
	if ss == nil {
		return fmt.Errorf("%w %d", ErrUnknownChannel, r.Channel)
	}
	if err := s.record(ss, r.Raw); err != nil {
		return err
	}
	s.notify()
	return nil
}

// ProcessReadings records readings until input closes. No callbacks are
// invoked after that until ResetShutdown is called.
func (s *Station) ProcessReadings(input <-chan sensor.Reading) {
	for r := range input {
		if err := s.Process(r); err != nil && !errors.Is(err, ErrUnknownChannel) {
			log.WithError(err).WithField("channel", r.Channel).Debug("reading skipped")
		}
	}

	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

// ResetShutdown re-enables callbacks after ProcessReadings returned.
func (s *Station) ResetShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = false
}

func (s *Station) lookup(channel uint8) *sensorState {
	for _, ss := range s.sensors {
		if ss.channel == channel {
			return ss
		}
	}
	return nil
}

// record converts raw and adds it to the sensor's accumulator and history.
// Water readings outside the calibration table are dropped.
func (s *Station) record(ss *sensorState, raw uint16) error {
	v, err := ss.conv.Convert(raw)
	if err != nil {
		log.WithError(err).WithField("sensor", ss.name).Debug("conversion failed")
		return fmt.Errorf("%s: %w", ss.name, err)
	}

	s.mu.Lock()
	ss.stats.Add(v)
	ss.history.Add(v, s.clock.Now())

	changed := false
	if ss.kind == sample.Water {
		on := v <= float32(s.cfg.WarningLevel)
		changed = on != s.warning
		s.warning = on
	}
	s.mu.Unlock()

	if changed {
		s.signal(v <= float32(s.cfg.WarningLevel), v)
	}
	return nil
}

func (s *Station) signal(on bool, level float32) {
	if on {
		log.WithField("level", level).Warn("water level low")
	} else {
		log.WithField("level", level).Info("water level restored")
	}

	if s.indicator == nil {
		return
	}
	if err := s.indicator.SetWarning(on); err != nil {
		log.WithError(err).Warn("failed to set warning indicator")
	}
}

// Warning reports whether the water level is at or below the warning level.
func (s *Station) Warning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warning
}

// Reports returns a snapshot of all sensors.
func (s *Station) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports()
}

func (s *Station) reports() []Report {
	reports := make([]Report, 0, len(s.sensors))
	for _, ss := range s.sensors {
		r := Report{
			Name:    ss.name,
			Kind:    ss.kind,
			Unit:    ss.kind.Unit(),
			Channel: ss.channel,
			Summary: ss.stats.Snapshot(),
			Max:     ss.history.Max(),
			Min:     ss.history.Min(),
			Total:   ss.history.Total(),
			History: ss.history.Values(),
		}
		if ss.kind == sample.Water {
			r.Warning = s.warning
			if latest := ss.history.Latest(); latest.Present {
				r.Percentage = uint8(latest.Value)
			}
		}
		reports = append(reports, r)
	}
	return reports
}

// notify invokes callbacks with fresh reports without holding locks.
func (s *Station) notify() {
	s.mu.RLock()
	if s.shutdown {
		s.mu.RUnlock()
		return
	}
	reports := s.reports()
	s.mu.RUnlock()

	s.cbMu.RLock()
	callbacks := make([]func(reports []Report), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(reports)
		}
	}
}

// Fields returns the mean of every published sensor keyed by field number.
// Sensors without samples are left out.
func (s *Station) Fields() map[int]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := make(map[int]float64)
	for _, ss := range s.sensors {
		if ss.field <= 0 || ss.stats.Count() == 0 {
			continue
		}
		fields[ss.field] = float64(sample.Round(float32(ss.stats.Mean()), 2))
	}
	return fields
}

// Publish uploads the current averages. It is a no-op without a publisher or
// without data.
func (s *Station) Publish(ctx context.Context) error {
	if s.publisher == nil {
		return nil
	}

	fields := s.Fields()
	if len(fields) == 0 {
		return nil
	}

	if bp, ok := s.publisher.(publish.BatchPublisher); ok {
		id, err := bp.PublishFields(ctx, fields)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		log.WithField("entry", id).Info("published averages")
		return nil
	}

	for field, value := range fields {
		id, err := s.publisher.Publish(ctx, field, value)
		if err != nil {
			return fmt.Errorf("publish field %d: %w", field, err)
		}
		log.WithFields(log.Fields{"field": field, "entry": id}).Info("published average")
	}
	return nil
}

// Run samples at the configured interval and publishes at the publish
// interval until ctx is cancelled.
func (s *Station) Run(ctx context.Context) error {
	if s.cfg.SampleInterval <= 0 {
		return fmt.Errorf("invalid sample interval %v", s.cfg.SampleInterval)
	}
	sampleTicker := time.NewTicker(s.cfg.SampleInterval)
	defer sampleTicker.Stop()

	var publishC <-chan time.Time
	if s.publisher != nil && s.cfg.PublishInterval > 0 {
		publishTicker := time.NewTicker(s.cfg.PublishInterval)
		defer publishTicker.Stop()
		publishC = publishTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sampleTicker.C:
			if err := s.Sample(); err != nil {
				log.WithError(err).Debug("sample cycle incomplete")
			}
		case <-publishC:
			if err := s.Publish(ctx); err != nil {
				log.WithError(err).Warn("publish failed")
			}
		}
	}
}
