package status

import (
	"context"
	"sync"

	"lautenbacher.net/gowave/actuator"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/display"
	"lautenbacher.net/gowave/sensor"
	"lautenbacher.net/gowave/util"
)

// Status is the body of GET /api/status.
type Status struct {
	State   countdown.State  `json:"state"`
	Display display.Frame    `json:"display"`
	Command actuator.Command `json:"command"`
	Sensor  *sensor.Reading  `json:"sensor"`
}

// Tracker keeps the latest state and sensor reading for the status
// endpoint.
type Tracker struct {
	mu      sync.RWMutex
	state   countdown.State
	reading *sensor.Reading
	command func(countdown.State) actuator.Command
}

// NewTracker returns a tracker that derives the actuator command with
// command at read time.
func NewTracker(command func(countdown.State) actuator.Command) *Tracker {
	return &Tracker{state: countdown.State{Mode: countdown.Idle}, command: command}
}

// Run follows states until ctx is done.
func (t *Tracker) Run(ctx context.Context, states *util.AtomicEvent[countdown.State]) {
	for {
		st, ok := states.Wait(ctx)
		if !ok {
			return
		}
		t.mu.Lock()
		t.state = st
		t.mu.Unlock()
	}
}

func (t *Tracker) OnReading(r sensor.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reading = &r
}

func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Status{
		State:   t.state,
		Display: display.Render(t.state),
		Command: t.command(t.state),
	}
	if t.reading != nil {
		r := *t.reading
		s.Sensor = &r
	}
	return s
}
