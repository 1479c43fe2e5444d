package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/gobonsai/pkg/config"
)

// Mock simulates a station for testing and development: a water reservoir
// that slowly drains and gets refilled, and temperature/humidity following a
// daily cycle.
type Mock struct {
	cfg     *config.MockConfig
	sensors config.SensorsConfig

	readings  chan Reading
	latest    latest
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// Simulation state
	startTime time.Time
	water     float64
	warning   bool
}

// NewMock creates a new mocked device instance. A nil cfg uses defaults.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:      &cfg.Mock,
		sensors:  cfg.Sensors,
		readings: make(chan Reading, DefaultBufferSize),
		ctx:      ctx,
		cancel:   cancel,
		water:    float64(cfg.Mock.WaterStart),
	}
}

// Connect starts the simulation. The first set of readings is available
// as soon as Connect returns.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	for _, r := range m.generateReadings(0) {
		m.latest.store(r)
	}

	go m.run()

	return nil
}

// Close stops the simulation.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	close(m.readings)

	return nil
}

// Readings returns the channel of simulated readings.
func (m *Mock) Readings() <-chan Reading {
	return m.readings
}

// Read returns the latest simulated value on channel.
func (m *Mock) Read(channel uint8) (uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest.load(channel)
}

// SetWarning records the warning LED state.
func (m *Mock) SetWarning(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}

	m.warning = on
	return nil
}

// Warning returns the last warning LED state.
func (m *Mock) Warning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.warning
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// run generates readings at the configured rate.
func (m *Mock) run() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			if !m.connected {
				m.mu.Unlock()
				return
			}
			for _, r := range m.generateReadings(now.Sub(m.startTime)) {
				m.latest.store(r)
				select {
				case m.readings <- r:
				default:
					// Channel full, skip
				}
			}
			m.mu.Unlock()
		}
	}
}

// generateReadings advances the simulation and returns one reading per
// enabled sensor. Must be called with mu held.
func (m *Mock) generateReadings(elapsed time.Duration) []Reading {
	readings := make([]Reading, 0, 3)

	// Reservoir drains a little on every step and is refilled when low
	m.water -= m.cfg.WaterDrain
	if m.water < float64(m.cfg.RefillBelow) {
		m.water = float64(m.cfg.WaterStart)
	}

	phase := 0.0
	if m.cfg.DayLength > 0 {
		phase = 2 * math.Pi * elapsed.Seconds() / m.cfg.DayLength.Seconds()
	}
	noise := (math.Sin(float64(elapsed.Milliseconds())*0.37) +
		math.Cos(float64(elapsed.Milliseconds())*0.13)) * m.cfg.NoiseLevel * 0.5

	if m.sensors.Water.Enabled {
		readings = append(readings, Reading{
			Uptime:  elapsed,
			Channel: m.sensors.Water.Channel,
			Raw:     clampRaw(m.water + noise),
		})
	}
	if m.sensors.Temperature.Enabled {
		readings = append(readings, Reading{
			Uptime:  elapsed,
			Channel: m.sensors.Temperature.Channel,
			Raw:     clampRaw(m.cfg.Temperature + m.cfg.Swing*math.Sin(phase) + noise),
		})
	}
	if m.sensors.Humidity.Enabled {
		// Humidity peaks when temperature bottoms out
		readings = append(readings, Reading{
			Uptime:  elapsed,
			Channel: m.sensors.Humidity.Channel,
			Raw:     clampRaw(m.cfg.Humidity - 4*m.cfg.Swing*math.Sin(phase) + noise),
		})
	}

	return readings
}

// clampRaw converts v into the 10-bit ADC range.
func clampRaw(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > MaxRaw {
		return MaxRaw
	}
	return uint16(v)
}
