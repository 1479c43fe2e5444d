package clock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUptime is a manually advanced uptime source.
type fakeUptime struct {
	d time.Duration
}

func (f *fakeUptime) now() time.Duration { return f.d }

func TestSetup_FirstBoot(t *testing.T) {
	store := &MemoryStore{}
	up := &fakeUptime{d: 3 * time.Second}
	c := New(store, up.now)

	require.NoError(t, c.Setup(ResetPowerOn))

	assert.Equal(t, time.Duration(0), c.Offset())
	assert.Equal(t, 3*time.Second, c.Now())

	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, MagicNumber, state.Magic)
	assert.Equal(t, uint64(0), state.Offset)
}

func TestSetup_FirstBootIgnoresResetReason(t *testing.T) {
	store := &MemoryStore{}
	// Garbage offset without a sentinel
	require.NoError(t, store.Save(State{Magic: 0xdeadbeef, Offset: 123456}))

	c := New(store, (&fakeUptime{}).now)
	require.NoError(t, c.Setup(ResetDeepSleepAwake))

	assert.Equal(t, time.Duration(0), c.Offset())
	state, _ := store.Load()
	assert.Equal(t, MagicNumber, state.Magic)
	assert.Equal(t, uint64(0), state.Offset)
}

func TestSetup_DeepSleepWakeRestoresOffset(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(State{Magic: MagicNumber, Offset: 90_000}))

	up := &fakeUptime{d: 500 * time.Millisecond}
	c := New(store, up.now)
	require.NoError(t, c.Setup(ResetDeepSleepAwake))

	assert.Equal(t, 90*time.Second, c.Offset())
	assert.Equal(t, 90*time.Second+500*time.Millisecond, c.Now())
}

func TestSetup_OtherResetsStartOver(t *testing.T) {
	reasons := []ResetReason{
		ResetPowerOn,
		ResetHardwareWatchdog,
		ResetException,
		ResetSoftwareWatchdog,
		ResetSoftwareRestart,
		ResetExternalSystem,
	}

	for _, reason := range reasons {
		t.Run(reason.String(), func(t *testing.T) {
			store := &MemoryStore{}
			require.NoError(t, store.Save(State{Magic: MagicNumber, Offset: 90_000}))

			c := New(store, (&fakeUptime{}).now)
			require.NoError(t, c.Setup(reason))

			assert.Equal(t, time.Duration(0), c.Offset())
		})
	}
}

func TestPrepareForSleep_MonotonicAcrossCycles(t *testing.T) {
	store := &MemoryStore{}
	up := &fakeUptime{}

	c := New(store, up.now)
	require.NoError(t, c.Setup(ResetPowerOn))

	var last time.Duration
	for cycle := 0; cycle < 5; cycle++ {
		up.d = 0
		if cycle > 0 {
			c = New(store, up.now)
			require.NoError(t, c.Setup(ResetDeepSleepAwake))
		}

		assert.GreaterOrEqual(t, c.Now(), last)

		up.d = 2 * time.Second
		last = c.Now()
		require.NoError(t, c.PrepareForSleep())
	}

	assert.Equal(t, 10*time.Second, last)
	state, _ := store.Load()
	assert.Equal(t, uint64(10_000), state.Offset)
}

func TestPowerLossResetsClock(t *testing.T) {
	store := &MemoryStore{}
	up := &fakeUptime{d: time.Minute}

	c := New(store, up.now)
	require.NoError(t, c.Setup(ResetPowerOn))
	require.NoError(t, c.PrepareForSleep())

	store.Wipe()
	up.d = 0
	c = New(store, up.now)
	require.NoError(t, c.Setup(ResetDeepSleepAwake))

	assert.Equal(t, time.Duration(0), c.Now())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtc.bin")
	store := NewFileStore(path)

	// Missing file reads as an empty region
	state, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, state)

	want := State{Magic: MagicNumber, Offset: 1<<40 + 7}
	require.NoError(t, store.Save(want))

	state, err = NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, state)

	require.NoError(t, store.Remove())
	require.NoError(t, store.Remove())
	state, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestFileStore_SleepCycle(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "rtc.bin"))
	up := &fakeUptime{d: 4 * time.Second}

	c := New(store, up.now)
	require.NoError(t, c.Setup(ResetPowerOn))
	require.NoError(t, c.PrepareForSleep())

	up.d = time.Second
	c = New(store, up.now)
	require.NoError(t, c.Setup(ResetDeepSleepAwake))
	assert.Equal(t, 5*time.Second, c.Now())
}

func TestResetReason_String(t *testing.T) {
	assert.Equal(t, "deep-sleep-awake", ResetDeepSleepAwake.String())
	assert.Equal(t, "reset(42)", ResetReason(42).String())

	r, err := ParseResetReason("software-watchdog")
	require.NoError(t, err)
	assert.Equal(t, ResetSoftwareWatchdog, r)

	_, err = ParseResetReason("brownout")
	assert.Error(t, err)
}
