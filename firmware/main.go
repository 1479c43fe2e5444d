//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/clock"
	"github.com/itohio/gobonsai/pkg/stats"
	"github.com/itohio/gobonsai/pkg/waterlevel"
)

var (
	adc  machine.ADC
	uart = machine.UART0

	muxSelect = [4]machine.Pin{PIN_MUX_S0, PIN_MUX_S1, PIN_MUX_S2, PIN_MUX_S3}
	channels  = [...]uint8{CHANNEL_WATER, CHANNEL_TEMPERATURE, CHANNEL_HUMIDITY}

	// Station time. The retained region lives in RAM, so every boot is a power-on.
	retained clock.MemoryStore
	boot     time.Time
	clk      *clock.Clock

	// Local water tracking
	water    *waterlevel.Monitor
	rawStats [NUM_MUX_CHANNELS]*stats.Running
	scans    int

	// Warning indicator. Once the host sends a command it owns the LED.
	warning      bool
	hostOverride bool

	lastScan time.Time

	// Serial buffer for reading lines
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	for _, p := range muxSelect {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
	PIN_MUX_ENABLE.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_MUX_POWER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_WARNING_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_MUX_ENABLE.High()
	PIN_MUX_POWER.Low()
	PIN_WARNING_LED.Low()

	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	adc = machine.ADC{Pin: PIN_ADC}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	boot = time.Now()
	clk = clock.New(&retained, func() time.Duration { return time.Since(boot) })
	if err := clk.Setup(clock.ResetPowerOn); err != nil {
		println("# clock setup failed:", err.Error())
	}
	for _, ch := range channels {
		rawStats[ch] = stats.New()
	}

	calibrator, err := calibrate.FromTable(WATER_UPPER, WATER_LOWER, WATER_TABLE[:])
	if err != nil {
		println("# calibration failed:", err.Error())
		calibrator = calibrate.New(WATER_UPPER, WATER_LOWER)
	}
	water = waterlevel.New(calibrator, HISTORY_LENGTH, WARNING_LEVEL)

	println("# gobonsai station")
	print("# channels water=", CHANNEL_WATER, " temperature=", CHANNEL_TEMPERATURE, " humidity=", CHANNEL_HUMIDITY, "\n")
	print("# calibration lower=", WATER_LOWER, " upper=", WATER_UPPER, " warning<=", WARNING_LEVEL, "%\n")

	for {
		processSerial()

		if time.Since(lastScan) >= SAMPLE_INTERVAL_MS*time.Millisecond {
			lastScan = time.Now()
			scan()
		}

		time.Sleep(10 * time.Millisecond)
	}
}

// scan powers the multiplexer, reads every configured channel and reports it.
func scan() {
	muxPowerOn()
	for _, ch := range channels {
		if !setChannel(ch) {
			continue
		}
		time.Sleep(SETTLE_US * time.Microsecond)
		raw := readRaw()
		rawStats[ch].Add(float32(raw))

		print(uint32(clk.Now().Milliseconds()), ",", ch, ",", raw, "\n")

		if ch == CHANNEL_WATER {
			trackWater(raw)
		}
	}
	muxPowerOff()

	scans++
	if scans%STATS_EVERY == 0 {
		printStats()
	}
}

// setChannel drives the select lines. Channels outside 0-15 are rejected.
func setChannel(ch uint8) bool {
	if ch >= NUM_MUX_CHANNELS {
		return false
	}
	for i, p := range muxSelect {
		p.Set(ch>>i&1 == 1)
	}
	return true
}

func muxPowerOn() {
	PIN_MUX_POWER.High()
	PIN_MUX_ENABLE.Low()
}

func muxPowerOff() {
	PIN_MUX_ENABLE.High()
	PIN_MUX_POWER.Low()
}

// readRaw averages NUM_SAMPLES conversions and scales them to RAW_BITS.
func readRaw() uint16 {
	var sum uint32
	for range NUM_SAMPLES {
		sum += uint32(adc.Get())
	}
	// machine.ADC.Get is left aligned to 16 bits regardless of resolution
	return uint16((sum / NUM_SAMPLES) >> (16 - RAW_BITS))
}

func trackWater(raw uint16) {
	if _, ok := water.Add(raw, clk.Now()); !ok {
		print("# water uncalibrated raw=", raw, "\n")
		return
	}

	if hostOverride {
		return
	}
	setWarning(water.Warning())
}

func setWarning(on bool) {
	if on == warning {
		return
	}
	warning = on
	PIN_WARNING_LED.Set(on)
	if on {
		println("# warning on")
	} else {
		println("# warning off")
	}
}

func printStats() {
	for _, ch := range channels {
		s := rawStats[ch].Snapshot()
		if s.Empty() {
			continue
		}
		print("# stats ch=", ch, " n=", uint32(s.Count), " min=", int32(s.Min), " max=", int32(s.Max), " mean=", int32(s.Mean), "\n")
	}
	latest := water.Latest()
	if latest.Present {
		print("# water ", int32(latest.Value), "% avg=", int32(water.Mean()), "%\n")
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleCommand(serialBuffer[:serialPos])
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}

// handleCommand understands "W1" and "W0". Anything else is reported and dropped.
func handleCommand(cmd []byte) {
	if len(cmd) == 2 && cmd[0] == 'W' && (cmd[1] == '0' || cmd[1] == '1') {
		hostOverride = true
		setWarning(cmd[1] == '1')
		return
	}
	print("# unknown command ", string(cmd), "\n")
}
