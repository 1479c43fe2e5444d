//go:build tinygo

package main

import (
	"machine"

	"github.com/itohio/gobonsai/pkg/calibrate"
)

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 2000 // Interval between full channel scans
	SETTLE_US          = 200  // Delay after switching mux channel before reading
	NUM_SAMPLES        = 8    // ADC reads averaged per channel reading
	STATS_EVERY        = 30   // Print a diagnostic summary every N scans

	// ADC configuration
	ADC_REFERENCE_MV = 3300
	ADC_RESOLUTION   = 12 // Hardware resolution; readings are reported as 10-bit (0-1023)
	RAW_BITS         = 10

	// Channels scanned on the multiplexer, in report order
	CHANNEL_WATER       = 0
	CHANNEL_TEMPERATURE = 1
	CHANNEL_HUMIDITY    = 2
	NUM_MUX_CHANNELS    = 16

	// Local warning: raised when the water level average drops to this percentage
	// and the host has not taken over the indicator.
	WARNING_LEVEL  = 20
	WATER_UPPER    = 800
	WATER_LOWER    = 250
	HISTORY_LENGTH = 16

	// Multiplexer select pins, S0 is the least significant bit
	PIN_MUX_S0 = machine.D7
	PIN_MUX_S1 = machine.D8
	PIN_MUX_S2 = machine.D9
	PIN_MUX_S3 = machine.D10

	PIN_MUX_ENABLE = machine.D6 // Active low
	PIN_MUX_POWER  = machine.D5 // Sensor supply switch

	// ADC pin connected to the multiplexer common output
	PIN_ADC = machine.A1

	PIN_WARNING_LED = machine.LED

	// Serial configuration
	// Format "uptime_ms,channel,raw\n", e.g. "4294967295,15,1023\n" is at most 19 bytes.
	// Three lines per scan every 2s is far below what 115200 baud carries.
	UART_BAUD_RATE = 115200
)

// WATER_TABLE is the raw range of each decile (0%, 10%, ... 100%), spread
// evenly between WATER_LOWER and WATER_UPPER like the host's default
// calibration.
var WATER_TABLE = [calibrate.Points]calibrate.Limit{
	{Lower: 250, Upper: 305},
	{Lower: 305, Upper: 360},
	{Lower: 360, Upper: 415},
	{Lower: 415, Upper: 470},
	{Lower: 470, Upper: 525},
	{Lower: 525, Upper: 580},
	{Lower: 580, Upper: 635},
	{Lower: 635, Upper: 690},
	{Lower: 690, Upper: 745},
	{Lower: 745, Upper: 800},
	{Lower: 800, Upper: 855},
}
