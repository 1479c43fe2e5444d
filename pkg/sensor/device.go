package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the station firmware UART.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
	// MaxRaw is the largest value of the 10-bit ADC.
	MaxRaw = 1023
)

// Reading is one raw measurement reported by the MCU.
type Reading struct {
	Uptime  time.Duration // MCU clock at the time of the read
	Channel uint8
	Raw     uint16 // 10-bit ADC reading (0-1023)
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// latest keeps the most recent reading of each channel.
type latest struct {
	raw [Channels]uint16
	ok  [Channels]bool
}

func (l *latest) store(r Reading) {
	l.raw[r.Channel] = r.Raw
	l.ok[r.Channel] = true
}

func (l *latest) load(channel uint8) (uint16, error) {
	if channel >= Channels {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if !l.ok[channel] {
		return 0, fmt.Errorf("%w %d", ErrNoReading, channel)
	}
	return l.raw[channel], nil
}

// Serial represents a connection to the station MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	readings  chan Reading
	latest    latest
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		readings: make(chan Reading, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readLines(port)

	return nil
}

// Close closes the connection and stops reading.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.WithError(err).Warn("Error closing serial port")
		}
		d.conn = nil
	}

	d.connected = false
	close(d.readings)

	return nil
}

// Readings returns the channel of raw readings as they arrive.
func (d *Serial) Readings() <-chan Reading {
	return d.readings
}

// Read returns the latest raw value reported on channel.
func (d *Serial) Read(channel uint8) (uint16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest.load(channel)
}

// SetWarning switches the warning LED on the station.
func (d *Serial) SetWarning(on bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := d.conn.Write([]byte(warningCommand(on))); err != nil {
		return fmt.Errorf("failed to send warning command: %w", err)
	}

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// warningCommand builds the command understood by the firmware: "W1\n" or "W0\n".
func warningCommand(on bool) string {
	if on {
		return "W1\n"
	}
	return "W0\n"
}

// readLines reads lines from r and dispatches parsed readings.
func (d *Serial) readLines(r io.Reader) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Panic in readLines: %v", rec)
		}
	}()

	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && err != io.EOF {
					log.WithError(err).Error("Error reading from serial port")
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				// Firmware diagnostics start with '#'
				continue
			}

			reading, err := parseLine(line)
			if err != nil {
				log.WithError(err).WithField("line", line).Warn("Failed to parse line")
				continue
			}

			d.dispatch(reading)
		}
	}
}

// dispatch records a reading and forwards it to the readings channel.
func (d *Serial) dispatch(reading Reading) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return
	}

	d.latest.store(reading)

	select {
	case d.readings <- reading:
	default:
		log.WithField("channel", reading.Channel).Debug("Readings channel full, dropping reading")
	}
}

// parseLine parses a line from the MCU into a Reading.
// Format: uptime_ms,channel,raw
// Example: 123456,2,517
func parseLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Reading{}, fmt.Errorf("invalid line format: expected 3 comma-separated values, got %d", len(parts))
	}

	uptimeMillis, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid uptime: %w", err)
	}

	channel, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid channel: %w", err)
	}
	if channel >= Channels {
		return Reading{}, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	raw, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid raw value: %w", err)
	}
	if raw > MaxRaw {
		return Reading{}, fmt.Errorf("raw value out of range: %d (max %d)", raw, MaxRaw)
	}

	return Reading{
		Uptime:  time.Duration(uptimeMillis) * time.Millisecond,
		Channel: uint8(channel),
		Raw:     uint16(raw),
	}, nil
}
