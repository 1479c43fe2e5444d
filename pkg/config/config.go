package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Station     StationConfig     `yaml:"station"`
	Sensors     SensorsConfig     `yaml:"sensors"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Publisher   PublisherConfig   `yaml:"publisher"`
	Clock       ClockConfig       `yaml:"clock"`
	Mock        MockConfig        `yaml:"mock"`
	Log         LogConfig         `yaml:"log"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// StationConfig contains sampling loop parameters.
type StationConfig struct {
	SampleInterval  time.Duration `yaml:"sample_interval"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	HistorySize     int           `yaml:"history_size"`     // Samples retained per sensor
	Oversample      int           `yaml:"oversample"`       // Consecutive reads averaged per sample (0 or 1 = disabled)
	WarningLevel    uint8         `yaml:"warning_level"`    // Water percentage at or below which the warning is raised
	SleepAfterCycle bool          `yaml:"sleep_after_cycle"` // Enter deep sleep after each publish
}

// SensorsConfig maps sensors to multiplexer channels.
type SensorsConfig struct {
	Water       SensorConfig `yaml:"water"`
	Temperature SensorConfig `yaml:"temperature"`
	Humidity    SensorConfig `yaml:"humidity"`
}

// SensorConfig describes one analog sensor.
// Linear sensors convert as value = raw*Scale + Offset.
type SensorConfig struct {
	Enabled bool    `yaml:"enabled"`
	Channel uint8   `yaml:"channel"` // Multiplexer channel 0-15
	Scale   float32 `yaml:"scale"`
	Offset  float32 `yaml:"offset"`
	Field   int     `yaml:"field"` // Publisher field number (0 = not published)
}

// CalibrationConfig contains the water level calibration table.
type CalibrationConfig struct {
	UpperLimit int16              `yaml:"upper_limit"`
	LowerLimit int16              `yaml:"lower_limit"`
	Points     []CalibrationPoint `yaml:"points"` // Index i covers i*10 percent
}

// CalibrationPoint is the raw range assigned to one decile.
type CalibrationPoint struct {
	Upper int16 `yaml:"upper"`
	Lower int16 `yaml:"lower"`
}

// PublisherConfig contains cloud publisher configuration.
type PublisherConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	ChannelID   uint64        `yaml:"channel_id"`
	MinInterval time.Duration `yaml:"min_interval"` // Minimum time between writes
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryMin    time.Duration `yaml:"retry_min"`
	RetryMax    time.Duration `yaml:"retry_max"`
}

// ClockConfig contains retained clock state configuration.
type ClockConfig struct {
	StatePath string `yaml:"state_path"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	WaterStart   uint16        `yaml:"water_start"`   // Raw water reading at start
	WaterDrain   float64       `yaml:"water_drain"`   // Raw units lost per sample
	RefillBelow  uint16        `yaml:"refill_below"`  // Refill when raw drops below
	Temperature  float64       `yaml:"temperature"`   // Mean raw temperature reading
	Humidity     float64       `yaml:"humidity"`      // Mean raw humidity reading
	Swing        float64       `yaml:"swing"`         // Daily swing amplitude (raw)
	NoiseLevel   float64       `yaml:"noise_level"`   // Noise amplitude (raw)
	SampleRate   time.Duration `yaml:"sample_rate"`   // Interval between generated readings
	DayLength    time.Duration `yaml:"day_length"`    // Period of the simulated day
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		Station: StationConfig{
			SampleInterval:  time.Second,
			PublishInterval: 5 * time.Minute,
			HistorySize:     60,
			Oversample:      4,
			WarningLevel:    20,
		},
		Sensors: SensorsConfig{
			Water: SensorConfig{
				Enabled: true,
				Channel: 0,
				Scale:   1,
				Field:   1,
			},
			Temperature: SensorConfig{
				Enabled: true,
				Channel: 1,
				Scale:   0.3222656, // LM35 on a 3.3V 10-bit ADC: 3300mV/1024/10mV per degree
				Field:   2,
			},
			Humidity: SensorConfig{
				Enabled: true,
				Channel: 2,
				Scale:   0.0977517, // 0-1023 mapped to 0-100 %RH
				Field:   3,
			},
		},
		Calibration: CalibrationConfig{
			UpperLimit: 800,
			LowerLimit: 250,
			Points:     DefaultCalibrationPoints(),
		},
		Publisher: PublisherConfig{
			Enabled:     false,
			URL:         "https://api.thingspeak.com",
			MinInterval: 15 * time.Second,
			Timeout:     10 * time.Second,
			MaxRetries:  3,
			RetryMin:    500 * time.Millisecond,
			RetryMax:    30 * time.Second,
		},
		Clock: ClockConfig{
			StatePath: "bonsai-rtc.bin",
		},
		Mock: MockConfig{
			WaterStart:  780,
			WaterDrain:  0.5,
			RefillBelow: 300,
			Temperature: 70,
			Humidity:    550,
			Swing:       15,
			NoiseLevel:  2,
			SampleRate:  100 * time.Millisecond,
			DayLength:   10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultCalibrationPoints spreads the deciles evenly between the default
// saturation limits.
func DefaultCalibrationPoints() []CalibrationPoint {
	const (
		lower = 250
		step  = 55
	)
	points := make([]CalibrationPoint, 11)
	for i := range points {
		points[i] = CalibrationPoint{
			Lower: int16(lower + i*step),
			Upper: int16(lower + (i+1)*step),
		}
	}
	return points
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects values the station cannot work with.
func (c *Config) Validate() error {
	for name, s := range map[string]SensorConfig{
		"water":       c.Sensors.Water,
		"temperature": c.Sensors.Temperature,
		"humidity":    c.Sensors.Humidity,
	} {
		if s.Channel >= 16 {
			return fmt.Errorf("sensor %s: channel %d out of range (0-15)", name, s.Channel)
		}
	}

	if c.Station.SampleInterval <= 0 {
		return fmt.Errorf("station: sample interval %s must be positive", c.Station.SampleInterval)
	}
	if c.Station.PublishInterval < 0 {
		return fmt.Errorf("station: publish interval %s must not be negative", c.Station.PublishInterval)
	}

	if len(c.Calibration.Points) > 11 {
		return fmt.Errorf("calibration: %d points (max 11)", len(c.Calibration.Points))
	}

	if c.Calibration.UpperLimit <= c.Calibration.LowerLimit {
		return fmt.Errorf("calibration: upper limit %d must be above lower limit %d",
			c.Calibration.UpperLimit, c.Calibration.LowerLimit)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Station.SampleInterval == 0 {
		c.Station.SampleInterval = def.Station.SampleInterval
	}
	if c.Station.PublishInterval == 0 {
		c.Station.PublishInterval = def.Station.PublishInterval
	}
	if c.Station.HistorySize == 0 {
		c.Station.HistorySize = def.Station.HistorySize
	}

	if c.Calibration.UpperLimit == 0 && c.Calibration.LowerLimit == 0 {
		c.Calibration.UpperLimit = def.Calibration.UpperLimit
		c.Calibration.LowerLimit = def.Calibration.LowerLimit
	}
	if len(c.Calibration.Points) == 0 {
		c.Calibration.Points = def.Calibration.Points
	}

	if c.Publisher.URL == "" {
		c.Publisher.URL = def.Publisher.URL
	}
	if c.Publisher.MinInterval == 0 {
		c.Publisher.MinInterval = def.Publisher.MinInterval
	}
	if c.Publisher.Timeout == 0 {
		c.Publisher.Timeout = def.Publisher.Timeout
	}
	if c.Publisher.RetryMin == 0 {
		c.Publisher.RetryMin = def.Publisher.RetryMin
	}
	if c.Publisher.RetryMax == 0 {
		c.Publisher.RetryMax = def.Publisher.RetryMax
	}

	if c.Clock.StatePath == "" {
		c.Clock.StatePath = def.Clock.StatePath
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.DayLength == 0 {
		c.Mock.DayLength = def.Mock.DayLength
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
