package actuator

import (
	"sync"
	"sync/atomic"
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/hardware"
)

// Buzzer sounds timed pulses on a digital output. Pulses are
// synchronous and never overlap; a caller arriving during a pulse waits
// for it to finish.
type Buzzer struct {
	out    hardware.Buzzer
	clock  clock.Clock
	mu     sync.Mutex
	active atomic.Bool
	done   <-chan struct{}
}

// NewBuzzer returns a buzzer whose waits end early once done is closed.
func NewBuzzer(out hardware.Buzzer, clk clock.Clock, done <-chan struct{}) *Buzzer {
	return &Buzzer{out: out, clock: clk, done: done}
}

// Pulse switches the buzzer on for d.
func (b *Buzzer) Pulse(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pulse(d)
}

// Alert sounds n pulses of length on, each followed by a pause of off.
// It reports false if it was cut short.
func (b *Buzzer) Alert(n int, on, off time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < n; i++ {
		if !b.pulse(on) {
			return false
		}
		if !clock.Sleep(b.clock, off, b.done) {
			return false
		}
	}
	return true
}

// Active reports whether the buzzer is sounding.
func (b *Buzzer) Active() bool {
	return b.active.Load()
}

// pulse is called with b.mu held.
func (b *Buzzer) pulse(d time.Duration) bool {
	b.set(true)
	defer b.set(false)
	return clock.Sleep(b.clock, d, b.done)
}

func (b *Buzzer) set(on bool) {
	b.active.Store(on)
	b.out.SetBuzzer(on)
}
