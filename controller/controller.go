// Package controller drives the timer: it paces the countdown while a
// time is running, plays the expiry sequence and keeps the LCD in step
// with every committed state.
package controller

import (
	"context"
	"log/slog"
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/display"
)

// Alerter sounds the expiry alarm. It reports false if cut short.
type Alerter interface {
	Alert(n int, on, off time.Duration) bool
}

type Controller struct {
	machine *countdown.Machine
	lcd     *display.LCD
	alerter Alerter
	clock   clock.Clock
	cfg     config.TimerConfig
	ticker  clock.Ticker
}

func New(machine *countdown.Machine, lcd *display.LCD, alerter Alerter, clk clock.Clock, cfg config.TimerConfig) *Controller {
	return &Controller{
		machine: machine,
		lcd:     lcd,
		alerter: alerter,
		clock:   clk,
		cfg:     cfg,
	}
}

// Run blocks until ctx is done. The countdown ticker only exists while
// the machine is Running. Entering Running decrements at once and then
// once per tick, so a 0:30 time expires 30 ticks after the start.
func (c *Controller) Run(ctx context.Context) {
	states := c.machine.Subscribe()
	defer c.stopTicker()

	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C()
		}

		select {
		case <-ctx.Done():
			slog.Debug("Controller stopped")
			return
		case <-states.Channel():
			st := states.Value()
			c.lcd.Show(display.Render(st))
			switch st.Mode {
			case countdown.Running:
				if c.ticker == nil {
					c.machine.Tick()
					c.startTicker()
				}
			case countdown.Expired:
				c.stopTicker()
				if !c.expire(ctx) {
					return
				}
			default:
				c.stopTicker()
			}
		case <-tick:
			c.machine.Tick()
		}
	}
}

// expire runs the blocking expiry sequence: the alarm, then the hold
// with "Time's up!" still shown, then back to Idle.
func (c *Controller) expire(ctx context.Context) bool {
	slog.Info("Countdown expired")
	if !c.alerter.Alert(c.cfg.ExpiryBeeps, c.cfg.ExpiryBeepOn, c.cfg.ExpiryBeepOff) {
		return false
	}
	if !clock.Sleep(c.clock, c.cfg.ExpiryHold, ctx.Done()) {
		return false
	}
	c.machine.FinishExpiry()
	return true
}

func (c *Controller) startTicker() {
	if c.ticker == nil {
		slog.Debug("Countdown ticker started", "interval", c.cfg.TickInterval)
		c.ticker = c.clock.NewTicker(c.cfg.TickInterval)
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}
