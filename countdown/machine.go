package countdown

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"lautenbacher.net/gowave/util"
)

// Machine owns the timer state. Every transition runs as one critical
// section and commits a complete new State, so no reader can observe
// new minutes together with an old mode. Readers on the hot path (the
// servo sync) use the atomically published snapshot and never take
// the lock.
type Machine struct {
	mu          sync.Mutex
	state       State
	snapshot    atomic.Pointer[State]
	nominalDuty uint16
	subscribers []*util.AtomicEvent[State]
}

// NewMachine returns a machine in Idle. nominalDuty is the servo pulse
// width commanded while Running.
func NewMachine(nominalDuty uint16) *Machine {
	m := &Machine{nominalDuty: nominalDuty}
	initial := State{Mode: Idle}
	m.snapshot.Store(&initial)
	return m
}

// Subscribe returns a mailbox receiving every committed state. Slow
// subscribers only see the latest one.
func (m *Machine) Subscribe() *util.AtomicEvent[State] {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := util.NewAtomicEvent[State]()
	sub.Send(m.state)
	m.subscribers = append(m.subscribers, sub)
	return sub
}

// commit publishes next. Caller holds m.mu.
func (m *Machine) commit(next State) {
	prev := m.state
	m.state = next
	published := next
	m.snapshot.Store(&published)
	for _, sub := range m.subscribers {
		sub.Send(next)
	}
	if prev.Mode != next.Mode {
		slog.Debug("Timer mode changed", "from", prev.Mode, "to", next.Mode, "minutes", next.Minutes, "seconds", next.Seconds)
	}
}

// Apply consumes one input event and reports whether it was accepted.
func (m *Machine) Apply(ev Event) bool {
	switch ev.Kind {
	case Digit:
		return m.EnterDigit(ev.Digit)
	case Preset:
		return m.SelectPreset(ev.Minutes, ev.Seconds)
	default:
		return false
	}
}

// EnterDigit appends d to the pending entry. The fourth digit completes
// the entry: it is parsed as MMSS, the pending digits are cleared and
// the countdown starts. An entry of 0000 has nothing to count and goes
// straight to Expired.
func (m *Machine) EnterDigit(d rune) bool {
	if d < '0' || d > '9' {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode != Idle && m.state.Mode != Entering {
		return false
	}
	if len(m.state.Pending) >= MaxDigits {
		return false
	}

	next := m.state
	next.Pending += string(d)
	next.Mode = Entering
	if len(next.Pending) == MaxDigits {
		next.Minutes, next.Seconds = parseEntry(next.Pending)
		next.Pending = ""
		if next.Minutes == 0 && next.Seconds == 0 {
			next.Mode = Expired
		} else {
			next.Mode = Running
		}
	}
	m.commit(next)
	return true
}

// SelectPreset starts a countdown of the given length. A preset
// overrides any digits entered so far. Zero-length presets are
// discarded.
func (m *Machine) SelectPreset(minutes, seconds uint8) bool {
	total := int(minutes)*60 + int(seconds)
	if total == 0 || total/60 > 255 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode != Idle && m.state.Mode != Entering {
		return false
	}
	m.commit(State{
		Minutes: uint8(total / 60),
		Seconds: uint8(total % 60),
		Mode:    Running,
	})
	return true
}

// Tick advances a running countdown by one second. A tick at 0:00
// expires the countdown instead. Ticks outside Running are ignored.
func (m *Machine) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode != Running {
		return false
	}

	next := m.state
	switch {
	case next.Minutes == 0 && next.Seconds == 0:
		next.Mode = Expired
	case next.Seconds == 0:
		next.Seconds = 59
		next.Minutes--
	default:
		next.Seconds--
	}
	m.commit(next)
	return true
}

// FinishExpiry clears all entry and countdown fields after the expiry
// sequence and returns to Idle.
func (m *Machine) FinishExpiry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode != Expired {
		return false
	}
	m.commit(State{Mode: Idle})
	return true
}

// Snapshot returns the latest committed state.
func (m *Machine) Snapshot() State {
	return *m.snapshot.Load()
}

func (m *Machine) Mode() Mode {
	return m.snapshot.Load().Mode
}

// InputLocked reports whether digits and presets are currently
// rejected.
func (m *Machine) InputLocked() bool {
	mode := m.Mode()
	return mode == Running || mode == Expired
}

// DutyCycle is the servo pulse width to command right now: the nominal
// value while Running, 0 otherwise.
func (m *Machine) DutyCycle() uint16 {
	if m.Mode() == Running {
		return m.nominalDuty
	}
	return 0
}
