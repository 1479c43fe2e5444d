package sensor

import "errors"

// Channels is the number of multiplexer channels.
const Channels = 16

var (
	// ErrInvalidChannel is returned for channels outside 0-15.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrNoReading is returned when a channel has not reported yet.
	ErrNoReading = errors.New("no reading on channel")
	// ErrNotConnected is returned by devices that are not connected.
	ErrNotConnected = errors.New("not connected")
)

// Source reads a raw analog value (0-1023) from a multiplexer channel.
type Source interface {
	Read(channel uint8) (uint16, error)
}

// Device defines the interface for station devices (real or mocked).
type Device interface {
	Source
	Connect() error
	Close() error
	Readings() <-chan Reading
	SetWarning(on bool) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
