package actuator

import (
	"context"
	"log/slog"
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/hardware"
)

// DutySource yields the servo pulse width to command right now.
type DutySource interface {
	DutyCycle() uint16
}

// Command is what the actuators are told at one sync instant.
type Command struct {
	ServoDuty    uint16 `json:"servoDuty"`
	BuzzerActive bool   `json:"buzzerActive"`
}

// CommandFor derives the actuator command from the timer mode.
func CommandFor(mode countdown.Mode, nominalDuty uint16, buzzerActive bool) Command {
	cmd := Command{BuzzerActive: buzzerActive}
	if mode == countdown.Running {
		cmd.ServoDuty = nominalDuty
	}
	return cmd
}

// Synchronizer copies the commanded duty cycle to the servo on its own
// periodic tick, independent of the countdown tick. It holds no state:
// whatever the source reports at the sync instant is written, even if
// it has not changed. A transition committed just after a sync is
// picked up one sync period later.
type Synchronizer struct {
	servo    hardware.Servo
	source   DutySource
	clock    clock.Clock
	interval time.Duration
}

func NewSynchronizer(servo hardware.Servo, source DutySource, clk clock.Clock, interval time.Duration) *Synchronizer {
	return &Synchronizer{servo: servo, source: source, clock: clk, interval: interval}
}

func (s *Synchronizer) OnSyncTick() {
	s.servo.SetDuty(s.source.DutyCycle())
}

// Run syncs until ctx is done, then parks the servo.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.servo.SetDuty(0)

	slog.Debug("Servo sync started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Servo sync stopped")
			return
		case <-ticker.C():
			s.OnSyncTick()
		}
	}
}
