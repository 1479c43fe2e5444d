package sample

import (
	"errors"
	"fmt"

	"github.com/itohio/gobonsai/pkg/sensor"
)

// Oversample reads channel n times from src and returns the rounded mean.
// Reads that fail with sensor.ErrNoReading are skipped; the call fails only
// when no read succeeded. Any other error aborts immediately.
func Oversample(src sensor.Source, channel uint8, n int) (uint16, error) {
	if n <= 0 {
		n = 1 // No averaging if invalid
	}

	buffer := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		raw, err := src.Read(channel)
		if errors.Is(err, sensor.ErrNoReading) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read channel %d: %w", channel, err)
		}
		buffer = append(buffer, raw)
	}

	if len(buffer) == 0 {
		return 0, fmt.Errorf("channel %d: %w", channel, sensor.ErrNoReading)
	}
	return Average(buffer), nil
}

// Average returns the mean of raw readings rounded to the nearest integer.
func Average(raw []uint16) uint16 {
	if len(raw) == 0 {
		return 0
	}

	var sum uint64
	for _, r := range raw {
		sum += uint64(r)
	}

	return uint16((float64(sum) / float64(len(raw))) + 0.5) // Round to nearest
}
