package countdown

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

const nominal = 1500

// restore forces the machine into s, bypassing the transitions.
func restore(m *Machine, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commit(s)
}

func enter(m *Machine, digits string) {
	for _, d := range digits {
		m.EnterDigit(d)
	}
}

func TestNewMachineIsIdle(t *testing.T) {
	m := NewMachine(nominal)
	assert.Equal(t, State{Mode: Idle}, m.Snapshot())
	assert.False(t, m.InputLocked())
	assert.Equal(t, uint16(0), m.DutyCycle())
}

func TestEnterDigits(t *testing.T) {
	m := NewMachine(nominal)

	assert.True(t, m.EnterDigit('0'))
	assert.Equal(t, State{Mode: Entering, Pending: "0"}, m.Snapshot())
	assert.True(t, m.EnterDigit('1'))
	assert.True(t, m.EnterDigit('3'))
	assert.Equal(t, "013", m.Snapshot().Pending)
	assert.Equal(t, Entering, m.Mode())

	assert.True(t, m.EnterDigit('0'))
	assert.Equal(t, State{Minutes: 1, Seconds: 30, Mode: Running}, m.Snapshot())
}

func TestEnterDigit_RejectsNonDigits(t *testing.T) {
	m := NewMachine(nominal)
	assert.False(t, m.EnterDigit('*'))
	assert.False(t, m.EnterDigit('#'))
	assert.Equal(t, Idle, m.Mode())
}

func TestEntryNormalization(t *testing.T) {
	tests := []struct {
		digits  string
		minutes uint8
		seconds uint8
	}{
		{"0175", 2, 15},
		{"0059", 0, 59},
		{"0060", 1, 0},
		{"0099", 1, 39},
		{"1230", 12, 30},
		{"9999", 100, 39},
	}
	for _, tt := range tests {
		t.Run(tt.digits, func(t *testing.T) {
			m := NewMachine(nominal)
			enter(m, tt.digits)
			s := m.Snapshot()
			assert.Equal(t, Running, s.Mode)
			assert.Equal(t, tt.minutes, s.Minutes)
			assert.Equal(t, tt.seconds, s.Seconds)
			assert.Less(t, s.Seconds, uint8(60))
			assert.Empty(t, s.Pending)
		})
	}
}

func TestEntryNormalization_AllEntries(t *testing.T) {
	for n := 1; n < 10000; n += 37 {
		digits := fmt.Sprintf("%04d", n)
		m := NewMachine(nominal)
		enter(m, digits)
		s := m.Snapshot()

		rawMinutes := n / 100
		rawSeconds := n % 100
		assert.Less(t, s.Seconds, uint8(60), digits)
		assert.Equal(t, uint8(rawMinutes+rawSeconds/60), s.Minutes, digits)
		assert.Equal(t, uint8(rawSeconds%60), s.Seconds, digits)
	}
}

func TestZeroEntryExpiresImmediately(t *testing.T) {
	m := NewMachine(nominal)
	enter(m, "0000")
	assert.Equal(t, State{Mode: Expired}, m.Snapshot())
	assert.Equal(t, uint16(0), m.DutyCycle())
}

func TestFifthDigitIsDropped(t *testing.T) {
	m := NewMachine(nominal)
	restore(m, State{Mode: Entering, Pending: "1234"})

	assert.False(t, m.EnterDigit('5'))
	assert.Equal(t, "1234", m.Snapshot().Pending)
}

func TestPresetFromIdle(t *testing.T) {
	m := NewMachine(nominal)
	assert.True(t, m.Apply(PresetEvent(2, 30)))
	assert.Equal(t, State{Minutes: 2, Seconds: 30, Mode: Running}, m.Snapshot())
}

func TestPresetOverridesEntry(t *testing.T) {
	m := NewMachine(nominal)
	enter(m, "12")

	assert.True(t, m.SelectPreset(0, 30))
	assert.Equal(t, State{Minutes: 0, Seconds: 30, Mode: Running}, m.Snapshot())
}

func TestZeroPresetIsDiscarded(t *testing.T) {
	m := NewMachine(nominal)
	assert.False(t, m.SelectPreset(0, 0))
	assert.Equal(t, Idle, m.Mode())
}

func TestRunningLocksOutInput(t *testing.T) {
	m := NewMachine(nominal)
	m.SelectPreset(1, 0)
	before := m.Snapshot()

	assert.True(t, m.InputLocked())
	for _, ev := range []Event{DigitEvent('5'), PresetEvent(3, 0), {Kind: None}} {
		assert.False(t, m.Apply(ev), ev.String())
		assert.Equal(t, before, m.Snapshot(), ev.String())
	}
}

func TestExpiredLocksOutInput(t *testing.T) {
	m := NewMachine(nominal)
	restore(m, State{Mode: Expired})

	assert.True(t, m.InputLocked())
	assert.False(t, m.EnterDigit('1'))
	assert.False(t, m.SelectPreset(0, 30))
	assert.Equal(t, State{Mode: Expired}, m.Snapshot())
}

func TestTickDecrements(t *testing.T) {
	m := NewMachine(nominal)
	m.SelectPreset(0, 30)

	assert.True(t, m.Tick())
	assert.Equal(t, State{Minutes: 0, Seconds: 29, Mode: Running}, m.Snapshot())
}

func TestTickBorrow(t *testing.T) {
	m := NewMachine(nominal)
	restore(m, State{Minutes: 2, Seconds: 0, Mode: Running})

	m.Tick()
	assert.Equal(t, State{Minutes: 1, Seconds: 59, Mode: Running}, m.Snapshot())
}

func TestTickAtZeroExpires(t *testing.T) {
	m := NewMachine(nominal)
	restore(m, State{Minutes: 0, Seconds: 0, Mode: Running})

	assert.True(t, m.Tick())
	assert.Equal(t, State{Minutes: 0, Seconds: 0, Mode: Expired}, m.Snapshot())

	// Further ticks never go below zero
	assert.False(t, m.Tick())
	assert.Equal(t, State{Minutes: 0, Seconds: 0, Mode: Expired}, m.Snapshot())
}

func TestTickIgnoredOutsideRunning(t *testing.T) {
	m := NewMachine(nominal)
	assert.False(t, m.Tick())
	enter(m, "1")
	assert.False(t, m.Tick())
	assert.Equal(t, State{Mode: Entering, Pending: "1"}, m.Snapshot())
}

func TestRoundTrip(t *testing.T) {
	m := NewMachine(nominal)
	initial := m.Snapshot()

	enter(m, "00")
	assert.Equal(t, Entering, m.Mode())
	enter(m, "03")
	assert.Equal(t, Running, m.Mode())

	ticks := 0
	for m.Mode() == Running {
		m.Tick()
		ticks++
	}
	// 0:03 -> 0:02 -> 0:01 -> 0:00 -> expired
	assert.Equal(t, 4, ticks)
	assert.Equal(t, Expired, m.Mode())
	assert.True(t, m.FinishExpiry())

	assert.Equal(t, initial, m.Snapshot())
	assert.False(t, m.FinishExpiry(), "FinishExpiry only applies in Expired")

	// Ready for a new entry from an empty buffer
	assert.True(t, m.EnterDigit('9'))
	assert.Equal(t, "9", m.Snapshot().Pending)
}

func TestDutyCycleFollowsMode(t *testing.T) {
	m := NewMachine(nominal)
	expect := map[Mode]uint16{Idle: 0, Entering: 0, Running: nominal, Expired: 0}
	for mode, duty := range expect {
		restore(m, State{Minutes: 1, Mode: mode})
		assert.Equal(t, duty, m.DutyCycle(), mode.String())
	}
}

func TestSubscribe(t *testing.T) {
	m := NewMachine(nominal)
	sub := m.Subscribe()

	// The current state is delivered on subscription
	<-sub.Channel()
	assert.Equal(t, State{Mode: Idle}, sub.Value())

	m.SelectPreset(1, 0)
	m.Tick()
	<-sub.Channel()
	assert.Equal(t, State{Minutes: 0, Seconds: 59, Mode: Running}, sub.Value())

	// Rejected input commits nothing
	m.EnterDigit('1')
	assert.Len(t, sub.Channel(), 0)
}

func TestConcurrentTransitionsAreAtomic(t *testing.T) {
	m := NewMachine(nominal)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := m.Snapshot()
			switch s.Mode {
			case Running, Expired, Idle:
				assert.Empty(t, s.Pending)
			case Entering:
				assert.NotEmpty(t, s.Pending)
			}
			assert.Less(t, s.Seconds, uint8(60))
			assert.LessOrEqual(t, len(s.Pending), MaxDigits)
		}
	}()

	for i := 0; i < 200; i++ {
		var inner sync.WaitGroup
		inner.Add(2)
		go func() {
			defer inner.Done()
			enter(m, "0105")
		}()
		go func() {
			defer inner.Done()
			m.SelectPreset(0, 30)
		}()
		inner.Wait()
		for m.Mode() == Running {
			m.Tick()
		}
		m.FinishExpiry()
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, Idle, m.Mode())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
	assert.Equal(t, "digit(7)", DigitEvent('7').String())
	assert.Equal(t, "preset(1:30)", PresetEvent(1, 30).String())
	assert.Equal(t, "running 01:05 pending=\"\"", State{Minutes: 1, Seconds: 5, Mode: Running}.String())
	assert.Equal(t, 65, State{Minutes: 1, Seconds: 5}.Remaining())
}
