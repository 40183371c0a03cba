// Package sensor samples the turntable accelerometer and the cavity
// temperature probe, derives angular speed and temperature and shows
// them on the auxiliary display. It runs beside the timer and never
// influences it.
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/hardware"
)

// Reading is the outcome of one sampling cycle. Velocity is only set
// once the window has filled.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	RawAccel    uint16    `json:"rawAccel"`
	RawTemp     uint16    `json:"rawTemp"`
	Baseline    float32   `json:"baseline"`
	Velocity    float32   `json:"velocity"`
	HasVelocity bool      `json:"hasVelocity"`
	TempC       float32   `json:"tempC"`
	TempF       float32   `json:"tempF"`
}

type Loop struct {
	adc       hardware.AnalogInput
	aux       hardware.TextDisplay
	clock     clock.Clock
	cfg       config.SensorsConfig
	conv      Converter
	window    *Window
	baseline  float32
	observers []func(Reading)
}

// NewLoop wires the sampling loop. aux may be nil when no auxiliary
// display is attached.
func NewLoop(adc hardware.AnalogInput, aux hardware.TextDisplay, clk clock.Clock, cfg config.SensorsConfig, observers ...func(Reading)) *Loop {
	return &Loop{
		adc:       adc,
		aux:       aux,
		clock:     clk,
		cfg:       cfg,
		conv:      NewConverter(cfg),
		window:    NewWindow(cfg.WindowSize),
		observers: observers,
	}
}

// Calibrate averages the acceleration at rest into the baseline. Failed
// samples are left out. It reports false if ctx ended first.
func (l *Loop) Calibrate(ctx context.Context) bool {
	var sum float32
	n := 0
	for i := 0; i < l.cfg.CalibrationSamples; i++ {
		if i > 0 && !clock.Sleep(l.clock, l.cfg.CalibrationDelay, ctx.Done()) {
			return false
		}
		raw, err := l.adc.ReadChannel(l.cfg.AccelChannel)
		if err != nil {
			slog.Debug("Calibration sample failed", "channel", l.cfg.AccelChannel, "error", err)
			continue
		}
		sum += l.conv.Acceleration(raw)
		n++
	}
	if n > 0 {
		l.baseline = sum / float32(n)
	}
	slog.Debug("Accelerometer calibrated", "baseline", l.baseline, "samples", n)
	return true
}

func (l *Loop) Baseline() float32 {
	return l.baseline
}

// Step runs one sampling cycle. A failed ADC read skips the cycle.
func (l *Loop) Step() (Reading, bool) {
	rawAccel, err := l.adc.ReadChannel(l.cfg.AccelChannel)
	if err != nil {
		slog.Debug("Skipping sensor cycle", "channel", l.cfg.AccelChannel, "error", err)
		return Reading{}, false
	}
	rawTemp, err := l.adc.ReadChannel(l.cfg.TempChannel)
	if err != nil {
		slog.Debug("Skipping sensor cycle", "channel", l.cfg.TempChannel, "error", err)
		return Reading{}, false
	}

	r := Reading{
		Timestamp: l.clock.Now(),
		RawAccel:  rawAccel,
		RawTemp:   rawTemp,
		Baseline:  l.baseline,
	}

	l.window.Push(l.conv.Acceleration(rawAccel))
	if l.window.Full() {
		net := l.window.Average() - l.baseline
		if net < 0 {
			net = float32(l.cfg.NetFloor)
		}
		r.Velocity = AngularSpeed(net, float32(l.cfg.RadiusMeters))
		r.HasVelocity = true
		l.show(fmt.Sprintf("Vel: %.2f rad/s", r.Velocity), 0)
	}

	r.TempC, r.TempF = l.conv.Temperature(rawTemp)
	l.show(fmt.Sprintf("Temp: %.2f F", r.TempF), 1)

	for _, obs := range l.observers {
		obs(r)
	}
	return r, true
}

func (l *Loop) show(text string, row int) {
	if l.aux != nil {
		l.aux.Write(fmt.Sprintf("%-16s", text), row, 0)
	}
}

// Run calibrates and then samples every LoopDelay until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	if !l.Calibrate(ctx) {
		return
	}
	ticker := l.clock.NewTicker(l.cfg.LoopDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Sensor loop stopped")
			return
		case <-ticker.C():
			l.Step()
		}
	}
}
