package input

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/hardware"
)

// Sink consumes input events. Apply reports whether the event was
// accepted.
type Sink interface {
	Apply(ev countdown.Event) bool
	InputLocked() bool
}

// Pulser gives audible feedback.
type Pulser interface {
	Pulse(d time.Duration)
}

type SourceConfig struct {
	SettleDelay time.Duration
	QuietPeriod time.Duration
	KeyPulse    time.Duration
}

// Source turns keypad and preset interrupts into countdown events. All
// interrupts are handled one after the other on the goroutine running
// Run, so handlers never overlap.
type Source struct {
	keypad   *Keypad
	presets  *PresetBank
	port     hardware.PresetPort
	sink     Sink
	feedback Pulser
	clock    clock.Clock
	cfg      SourceConfig

	mu         sync.Mutex
	lastKey    rune
	latchTimer clock.Timer
	latchGen   uint64
}

func NewSource(matrix hardware.KeypadMatrix, port hardware.PresetPort, presets *PresetBank, sink Sink, feedback Pulser, clk clock.Clock, cfg SourceConfig) *Source {
	return &Source{
		keypad:   NewKeypad(matrix, clk, cfg.SettleDelay),
		presets:  presets,
		port:     port,
		sink:     sink,
		feedback: feedback,
		clock:    clk,
		cfg:      cfg,
	}
}

// Run services interrupts until ctx is done or irqs is closed.
func (s *Source) Run(ctx context.Context, irqs <-chan hardware.Interrupt) {
	defer s.stopLatchTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case irq, ok := <-irqs:
			if !ok {
				return
			}
			s.Handle(irq)
		}
	}
}

func (s *Source) Handle(irq hardware.Interrupt) {
	switch irq.Source {
	case hardware.KeypadIRQ:
		s.OnKeypadInterrupt()
	case hardware.PresetIRQ:
		s.OnPresetPressed(irq.Flags)
	}
}

// OnKeypadInterrupt scans the keypad unless entry is locked. A key
// equal to the latched last key is a repeat of the same press and is
// dropped; the latch clears once the keypad has been quiet for the
// quiet period. Only digits produce events.
func (s *Source) OnKeypadInterrupt() {
	if s.sink.InputLocked() {
		return
	}
	key, ok := s.keypad.Poll()
	if !ok {
		return
	}

	s.mu.Lock()
	repeat := key == s.lastKey
	s.lastKey = key
	s.armLatchTimer()
	s.mu.Unlock()

	if repeat {
		return
	}
	if key < '0' || key > '9' {
		slog.Debug("Ignoring non-digit key", "key", string(key))
		return
	}
	s.deliver(countdown.DigitEvent(key))
}

// OnPresetPressed debounces a preset edge and applies the preset of the
// lowest pressed, mapped button. flags holds the edge bits; 0 means the
// platform cannot tell which line fired and the levels alone decide.
func (s *Source) OnPresetPressed(flags uint8) {
	clock.Sleep(s.clock, s.cfg.SettleDelay, nil)
	pressed := s.port.PresetLevels()
	if flags != 0 {
		pressed &= flags
	}
	p, ok := s.presets.Decode(pressed)
	if !ok {
		slog.Debug("Discarding preset pattern", "flags", flags, "pressed", pressed)
		return
	}
	slog.Debug("Preset selected", "name", p.Name, "minutes", p.Minutes, "seconds", p.Seconds)
	s.deliver(countdown.PresetEvent(p.Minutes, p.Seconds))
}

func (s *Source) deliver(ev countdown.Event) {
	if !s.sink.Apply(ev) {
		return
	}
	if s.feedback != nil {
		s.feedback.Pulse(s.cfg.KeyPulse)
	}
}

// LastKey returns the latched key, 0 if none.
func (s *Source) LastKey() rune {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKey
}

// armLatchTimer (re)starts the quiet period. Caller holds s.mu.
func (s *Source) armLatchTimer() {
	if s.latchTimer != nil {
		s.latchTimer.Stop()
	}
	s.latchGen++
	gen := s.latchGen
	s.latchTimer = s.clock.AfterFunc(s.cfg.QuietPeriod, func() { s.clearLatch(gen) })
}

// clearLatch ignores timers that were superseded while already firing.
func (s *Source) clearLatch(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.latchGen {
		return
	}
	s.lastKey = 0
	s.latchTimer = nil
}

func (s *Source) stopLatchTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latchTimer != nil {
		s.latchTimer.Stop()
		s.latchTimer = nil
	}
}
