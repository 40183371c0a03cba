package platform

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/input"
	"lautenbacher.net/gowave/util"
)

// simKeypad emulates the 4x3 matrix: a held key pulls its column low
// whenever its row is driven low.
type simKeypad struct {
	mu        sync.Mutex
	drivenRow int
	pressed   bool
	row, col  int
}

func newSimKeypad() *simKeypad {
	return &simKeypad{drivenRow: -1}
}

func (k *simKeypad) DriveRow(row int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.drivenRow = row
}

func (k *simKeypad) ColumnLow(col int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.pressed || col != k.col {
		return false
	}
	return k.drivenRow < 0 || k.drivenRow == k.row
}

// Press holds key. It reports false for keys not on the keypad.
func (k *simKeypad) Press(key rune) bool {
	row, col, ok := input.KeyPosition(key)
	if !ok {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pressed, k.row, k.col = true, row, col
	return true
}

func (k *simKeypad) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pressed = false
}

type simPresetPort struct {
	levels atomic.Uint32
}

func (p *simPresetPort) PresetLevels() uint8 {
	return uint8(p.levels.Load())
}

func (p *simPresetPort) Press(bit uint8) {
	for {
		old := p.levels.Load()
		if p.levels.CompareAndSwap(old, old|1<<bit) {
			return
		}
	}
}

func (p *simPresetPort) Release(bit uint8) {
	for {
		old := p.levels.Load()
		if p.levels.CompareAndSwap(old, old&^(1<<bit)) {
			return
		}
	}
}

type simServo struct {
	duty atomic.Uint32
}

func (s *simServo) SetDuty(us uint16) {
	s.duty.Store(uint32(us))
}

func (s *simServo) Duty() uint16 {
	return uint16(s.duty.Load())
}

// simBuzzer records the buzzer output and optionally sounds a tone.
type simBuzzer struct {
	on   atomic.Bool
	tone func(on bool)
}

func (b *simBuzzer) SetBuzzer(on bool) {
	b.on.Store(on)
	if b.tone != nil {
		b.tone(on)
	}
}

func (b *simBuzzer) On() bool {
	return b.on.Load()
}

// simADC models the appliance physics: the turntable spins up while the
// servo is driven and coasts down otherwise, and the cavity heats up
// while running and cools towards room temperature. The values are
// converted back to raw counts with the sensor calibration.
type simADC struct {
	mu       sync.Mutex
	cfg      config.SensorsConfig
	servo    *simServo
	clock    clock.Clock
	last     time.Time
	omega    float64
	celsius  float64
	noise    float64
	maxOmega float64
}

const (
	simRoomTemp = 21.0
	simHotTemp  = 85.0
	simSpinUp   = 1500 * time.Millisecond
	simHeatUp   = 90 * time.Second
	simTurnRate = 2.1
)

func newSimADC(cfg config.SensorsConfig, servo *simServo, clk clock.Clock) *simADC {
	return &simADC{
		cfg:      cfg,
		servo:    servo,
		clock:    clk,
		last:     clk.Now(),
		celsius:  simRoomTemp,
		noise:    0.03,
		maxOmega: simTurnRate,
	}
}

func (a *simADC) ReadChannel(ch int) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance()

	switch ch {
	case a.cfg.AccelChannel:
		accel := a.omega*a.omega*a.cfg.RadiusMeters + a.noise*(rand.Float64()-0.5)
		raw := a.cfg.ZeroGOffset + accel/a.cfg.Gravity*a.cfg.Sensitivity
		return uint16(util.Clamp(math.Round(raw), 0, math.MaxUint16)), nil
	case a.cfg.TempChannel:
		volts := a.celsius*a.cfg.TempVoltsPerDegree + a.cfg.TempOffsetVolts
		raw := volts / a.cfg.VRef * a.cfg.FullScale
		return uint16(util.Clamp(math.Round(raw), 0, a.cfg.FullScale-1)), nil
	default:
		return 0, fmt.Errorf("simulated adc has no channel %d", ch)
	}
}

// advance moves the physics forward to now with first order lags.
func (a *simADC) advance() {
	now := a.clock.Now()
	dt := now.Sub(a.last)
	a.last = now
	if dt <= 0 {
		return
	}

	targetOmega, targetTemp := 0.0, simRoomTemp
	if a.servo.Duty() > 0 {
		targetOmega, targetTemp = a.maxOmega, simHotTemp
	}
	a.omega += (targetOmega - a.omega) * lag(dt, simSpinUp)
	a.celsius += (targetTemp - a.celsius) * lag(dt, simHeatUp)
}

func lag(dt, tau time.Duration) float64 {
	return 1 - math.Exp(-dt.Seconds()/tau.Seconds())
}
