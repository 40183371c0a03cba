package input

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/hardware"
)

type fakeMatrix struct {
	mu      sync.Mutex
	row     int
	pressed map[[2]int]bool
	bounce  bool
	driven  []int
}

func newFakeMatrix() *fakeMatrix {
	return &fakeMatrix{row: -1, pressed: make(map[[2]int]bool)}
}

func (f *fakeMatrix) DriveRow(row int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.row = row
	f.driven = append(f.driven, row)
}

func (f *fakeMatrix) ColumnLow(col int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.row < 0 {
		for pos := range f.pressed {
			if pos[1] == col {
				return true
			}
		}
		return false
	}
	pos := [2]int{f.row, col}
	low := f.pressed[pos]
	if low && f.bounce {
		delete(f.pressed, pos)
	}
	return low
}

func (f *fakeMatrix) press(key rune) {
	row, col, ok := KeyPosition(key)
	if !ok {
		panic("no such key")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed[[2]int{row, col}] = true
}

func (f *fakeMatrix) releaseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = make(map[[2]int]bool)
}

func (f *fakeMatrix) lastDriven() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.driven[len(f.driven)-1]
}

func (f *fakeMatrix) scans() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.driven)
}

type fakePort struct {
	levels uint8
}

func (p *fakePort) PresetLevels() uint8 { return p.levels }

type countingPulser struct {
	mu     sync.Mutex
	pulses []time.Duration
}

func (c *countingPulser) Pulse(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulses = append(c.pulses, d)
}

func (c *countingPulser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pulses)
}

func defaultBank() *PresetBank {
	conf := config.Default()
	return NewPresetBank(PresetsFromConfig(conf.Presets))
}

type fixture struct {
	matrix  *fakeMatrix
	port    *fakePort
	machine *countdown.Machine
	pulser  *countingPulser
	clock   *clock.Fake
	source  *Source
}

func newFixture() *fixture {
	f := &fixture{
		matrix:  newFakeMatrix(),
		port:    &fakePort{},
		machine: countdown.NewMachine(1500),
		pulser:  &countingPulser{},
		clock:   clock.NewFake(),
	}
	f.source = NewSource(f.matrix, f.port, defaultBank(), f.machine, f.pulser, f.clock, SourceConfig{
		QuietPeriod: 200 * time.Millisecond,
		KeyPulse:    150 * time.Millisecond,
	})
	return f
}

// tap presses key, raises the keypad interrupt and releases the key.
func (f *fixture) tap(key rune) {
	f.matrix.press(key)
	f.source.OnKeypadInterrupt()
	f.matrix.releaseAll()
	f.clock.Advance(200 * time.Millisecond)
}

func TestKeypad_PollEveryKey(t *testing.T) {
	for _, keys := range keypadLayout {
		for _, key := range keys {
			m := newFakeMatrix()
			m.press(key)
			k := NewKeypad(m, clock.New(), 0)

			got, ok := k.Poll()
			assert.True(t, ok, string(key))
			assert.Equal(t, key, got)
			assert.Equal(t, -1, m.lastDriven(), "rows are released after a scan")
		}
	}
}

func TestKeypad_NothingPressed(t *testing.T) {
	m := newFakeMatrix()
	k := NewKeypad(m, clock.New(), 0)

	_, ok := k.Poll()
	assert.False(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3, -1}, m.driven)
}

func TestKeypad_BounceIsRejected(t *testing.T) {
	m := newFakeMatrix()
	m.bounce = true
	m.press('5')
	k := NewKeypad(m, clock.New(), 0)

	_, ok := k.Poll()
	assert.False(t, ok)
}

func TestKeypad_SettleDelay(t *testing.T) {
	fc := clock.NewFake()
	m := newFakeMatrix()
	m.press('8')
	k := NewKeypad(m, fc, 10*time.Millisecond)

	type result struct {
		key rune
		ok  bool
	}
	results := make(chan result, 1)
	go func() {
		key, ok := k.Poll()
		results <- result{key, ok}
	}()

	fc.BlockUntil(1)
	select {
	case <-results:
		t.Fatal("Poll must wait for the settle delay")
	default:
	}
	fc.Advance(10 * time.Millisecond)
	r := <-results
	assert.True(t, r.ok)
	assert.Equal(t, '8', r.key)

	// Released while settling
	go func() {
		key, ok := k.Poll()
		results <- result{key, ok}
	}()
	fc.BlockUntil(1)
	m.releaseAll()
	fc.Advance(10 * time.Millisecond)
	r = <-results
	assert.False(t, r.ok)
}

func TestPresetBank_Decode(t *testing.T) {
	bank := defaultBank()
	expect := map[uint8][2]uint8{
		0: {0, 30},
		1: {1, 0},
		4: {1, 30},
		5: {2, 0},
		6: {2, 30},
		7: {3, 0},
	}
	for bit, want := range expect {
		p, ok := bank.Decode(1 << bit)
		assert.True(t, ok, "bit %d", bit)
		assert.Equal(t, want, [2]uint8{p.Minutes, p.Seconds}, "bit %d", bit)
	}

	for _, pattern := range []uint8{0, 1 << 2, 1 << 3, 1<<2 | 1<<3} {
		_, ok := bank.Decode(pattern)
		assert.False(t, ok, "pattern %08b", pattern)
	}

	// The lowest mapped bit wins
	p, ok := bank.Decode(1<<7 | 1<<4 | 1<<2)
	assert.True(t, ok)
	assert.Equal(t, uint8(4), p.Bit)
}

func TestSource_DigitEntry(t *testing.T) {
	f := newFixture()

	for _, key := range "01" {
		f.tap(key)
	}
	assert.Equal(t, countdown.State{Mode: countdown.Entering, Pending: "01"}, f.machine.Snapshot())

	f.tap('*')
	f.tap('#')
	assert.Equal(t, "01", f.machine.Snapshot().Pending, "only digits are consumed")

	f.tap('7')
	f.tap('5')
	assert.Equal(t, countdown.State{Minutes: 2, Seconds: 15, Mode: countdown.Running}, f.machine.Snapshot())

	assert.Equal(t, 4, f.pulser.count(), "one pulse per accepted digit")
	assert.Equal(t, 150*time.Millisecond, f.pulser.pulses[0])
}

func TestSource_RepeatSuppressedUntilQuiet(t *testing.T) {
	f := newFixture()
	f.matrix.press('3')

	f.source.OnKeypadInterrupt()
	f.source.OnKeypadInterrupt()
	assert.Equal(t, "3", f.machine.Snapshot().Pending)
	assert.Equal(t, '3', f.source.LastKey())

	// Activity keeps the latch armed
	f.clock.Advance(150 * time.Millisecond)
	f.source.OnKeypadInterrupt()
	f.clock.Advance(150 * time.Millisecond)
	assert.Equal(t, '3', f.source.LastKey())
	assert.Equal(t, "3", f.machine.Snapshot().Pending)

	f.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, rune(0), f.source.LastKey())

	f.source.OnKeypadInterrupt()
	assert.Equal(t, "33", f.machine.Snapshot().Pending)
	assert.Equal(t, 2, f.pulser.count())
}

func TestSource_DifferentKeyIsNotARepeat(t *testing.T) {
	f := newFixture()
	f.matrix.press('1')
	f.source.OnKeypadInterrupt()
	f.matrix.releaseAll()
	f.matrix.press('2')
	f.source.OnKeypadInterrupt()

	assert.Equal(t, "12", f.machine.Snapshot().Pending)
}

func TestSource_LockedWhileRunning(t *testing.T) {
	f := newFixture()
	f.machine.SelectPreset(1, 0)
	before := f.matrix.scans()

	f.matrix.press('4')
	f.source.OnKeypadInterrupt()

	assert.Equal(t, before, f.matrix.scans(), "keypad is not scanned while locked")
	assert.Equal(t, countdown.State{Minutes: 1, Mode: countdown.Running}, f.machine.Snapshot())
	assert.Equal(t, 0, f.pulser.count())
}

func TestSource_Presets(t *testing.T) {
	f := newFixture()

	f.port.levels = 1 << 5
	f.source.OnPresetPressed(1 << 5)
	assert.Equal(t, countdown.State{Minutes: 2, Seconds: 0, Mode: countdown.Running}, f.machine.Snapshot())
	assert.Equal(t, 1, f.pulser.count())

	// Locked out while running
	f.port.levels = 1 << 7
	f.source.OnPresetPressed(1 << 7)
	assert.Equal(t, uint8(2), f.machine.Snapshot().Minutes)
	assert.Equal(t, 1, f.pulser.count())
}

func TestSource_PresetOverridesEntry(t *testing.T) {
	f := newFixture()
	f.tap('1')
	f.tap('2')

	f.port.levels = 1
	f.source.OnPresetPressed(1)
	assert.Equal(t, countdown.State{Minutes: 0, Seconds: 30, Mode: countdown.Running}, f.machine.Snapshot())
}

func TestSource_PresetDiscarded(t *testing.T) {
	f := newFixture()

	// Unmapped line
	f.port.levels = 1 << 2
	f.source.OnPresetPressed(1 << 2)
	// Released before the settle delay elapsed
	f.port.levels = 0
	f.source.OnPresetPressed(1 << 6)

	assert.Equal(t, countdown.State{Mode: countdown.Idle}, f.machine.Snapshot())
	assert.Equal(t, 0, f.pulser.count())
}

func TestSource_PresetWithoutFlags(t *testing.T) {
	f := newFixture()
	f.port.levels = 1 << 1
	f.source.OnPresetPressed(0)
	assert.Equal(t, countdown.State{Minutes: 1, Mode: countdown.Running}, f.machine.Snapshot())
}

func TestSource_Run(t *testing.T) {
	f := newFixture()
	irqs := make(chan hardware.Interrupt)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.source.Run(ctx, irqs)
		close(done)
	}()

	f.matrix.press('9')
	irqs <- hardware.Interrupt{Source: hardware.KeypadIRQ}
	f.port.levels = 1 << 4
	irqs <- hardware.Interrupt{Source: hardware.PresetIRQ, Flags: 1 << 4}

	require.Eventually(t, func() bool {
		return f.machine.Mode() == countdown.Running
	}, time.Second, time.Millisecond)
	assert.Equal(t, countdown.State{Minutes: 1, Seconds: 30, Mode: countdown.Running}, f.machine.Snapshot())

	cancel()
	<-done
	assert.Equal(t, 0, f.clock.Pending(), "latch timer is stopped on exit")
}
