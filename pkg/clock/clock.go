// Package clock provides an elapsed-time clock that stays monotonic across
// deep-sleep cycles.
//
// Local uptime restarts from zero on every wake. The clock adds an offset
// that is carried over sleep in retained memory, guarded by a magic number
// that tells valid retained memory from garbage left after a power loss.
// Across any reset other than a wake from deep sleep the clock starts over.
package clock

import (
	"fmt"
	"time"
)

// MagicNumber marks the retained region as written by this clock.
const MagicNumber uint32 = 0x75a78fc5

// ResetReason is the cause of the last MCU reset.
type ResetReason int

// Reset reasons, numbered as the ESP8266 SDK reports them.
const (
	ResetPowerOn ResetReason = iota
	ResetHardwareWatchdog
	ResetException
	ResetSoftwareWatchdog
	ResetSoftwareRestart
	ResetDeepSleepAwake
	ResetExternalSystem
)

var resetReasonNames = map[ResetReason]string{
	ResetPowerOn:          "power-on",
	ResetHardwareWatchdog: "hardware-watchdog",
	ResetException:        "exception",
	ResetSoftwareWatchdog: "software-watchdog",
	ResetSoftwareRestart:  "software-restart",
	ResetDeepSleepAwake:   "deep-sleep-awake",
	ResetExternalSystem:   "external-system",
}

func (r ResetReason) String() string {
	if name, ok := resetReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reset(%d)", int(r))
}

// ParseResetReason is the inverse of ResetReason.String.
func ParseResetReason(s string) (ResetReason, error) {
	for r, name := range resetReasonNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown reset reason %q", s)
}

// Clock is not safe for concurrent use.
type Clock struct {
	store  Store
	uptime func() time.Duration
	offset time.Duration
}

// New creates a clock. uptime reports time since the current boot.
func New(store Store, uptime func() time.Duration) *Clock {
	return &Clock{
		store:  store,
		uptime: uptime,
	}
}

// Setup restores the offset from retained memory. Call once after boot.
func (c *Clock) Setup(reason ResetReason) error {
	state, err := c.store.Load()
	if err != nil {
		return err
	}

	if state.Magic != MagicNumber {
		c.offset = 0
		return c.store.Save(State{Magic: MagicNumber})
	}

	if reason != ResetDeepSleepAwake {
		c.offset = 0
		return nil
	}

	c.offset = time.Duration(state.Offset) * time.Millisecond
	return nil
}

// Now returns elapsed time including all previous sleep cycles.
func (c *Clock) Now() time.Duration {
	return c.uptime() + c.offset
}

// Offset returns the time carried over from previous cycles.
func (c *Clock) Offset() time.Duration {
	return c.offset
}

// PrepareForSleep folds the current uptime into the offset and persists it.
// Call right before entering deep sleep.
func (c *Clock) PrepareForSleep() error {
	c.offset += c.uptime()
	return c.store.Save(State{
		Magic:  MagicNumber,
		Offset: uint64(c.offset / time.Millisecond),
	})
}
