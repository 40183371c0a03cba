// Package telemetry mirrors the timer state and the sensor readings to
// an MQTT broker. It only observes; a broker that is slow or gone never
// holds up the timer.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"lautenbacher.net/gowave/actuator"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/display"
	"lautenbacher.net/gowave/sensor"
	"lautenbacher.net/gowave/util"
)

const (
	StateTopic  = "state"
	SensorTopic = "sensor"
	OnlineTopic = "online"
)

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// StatePayload is published retained on <prefix>/state on every
// committed state.
type StatePayload struct {
	Timestamp    string `json:"timestamp"`
	Mode         string `json:"mode"`
	Minutes      uint8  `json:"minutes"`
	Seconds      uint8  `json:"seconds"`
	Remaining    string `json:"remaining"`
	RemainingSec int    `json:"remainingSeconds"`
	Pending      string `json:"pending"`
	ServoDuty    uint16 `json:"servoDuty"`
	BuzzerActive bool   `json:"buzzerActive"`
}

type SensorPayload struct {
	Timestamp string   `json:"timestamp"`
	Velocity  *float32 `json:"velocity"`
	TempC     float32  `json:"tempC"`
	TempF     float32  `json:"tempF"`
	RawAccel  uint16   `json:"rawAccel"`
	RawTemp   uint16   `json:"rawTemp"`
}

func FormatState(st countdown.State, cmd actuator.Command, ts time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{
		Timestamp:    ts.UTC().Format(time.RFC3339),
		Mode:         st.Mode.String(),
		Minutes:      st.Minutes,
		Seconds:      st.Seconds,
		Remaining:    display.FormatClock(st.Minutes, st.Seconds),
		RemainingSec: st.Remaining(),
		Pending:      st.Pending,
		ServoDuty:    cmd.ServoDuty,
		BuzzerActive: cmd.BuzzerActive,
	})
}

// FormatSensor leaves velocity null until the averaging window filled.
func FormatSensor(r sensor.Reading) ([]byte, error) {
	p := SensorPayload{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		TempC:     r.TempC,
		TempF:     r.TempF,
		RawAccel:  r.RawAccel,
		RawTemp:   r.RawTemp,
	}
	if r.HasVelocity {
		v := r.Velocity
		p.Velocity = &v
	}
	return json.Marshal(p)
}

// Reporter publishes state changes as they come and sensor readings at
// most once per sensor period.
type Reporter struct {
	pub     Publisher
	prefix  string
	command func(countdown.State) actuator.Command
	now     func() time.Time
	limiter *rate.Limiter
}

func NewReporter(pub Publisher, prefix string, sensorPeriod time.Duration, command func(countdown.State) actuator.Command, now func() time.Time) *Reporter {
	return &Reporter{
		pub:     pub,
		prefix:  prefix,
		command: command,
		now:     now,
		limiter: rate.NewLimiter(rate.Every(sensorPeriod), 1),
	}
}

func (r *Reporter) topic(name string) string {
	return r.prefix + "/" + name
}

// Run publishes every state received from states until ctx is done.
// Intermediate states are skipped if the broker is slower than the
// timer.
func (r *Reporter) Run(ctx context.Context, states *util.AtomicEvent[countdown.State]) {
	r.publish(OnlineTopic, 1, true, []byte("true"))
	for {
		st, ok := states.Wait(ctx)
		if !ok {
			r.publish(OnlineTopic, 1, true, []byte("false"))
			return
		}
		r.PublishState(st)
	}
}

func (r *Reporter) PublishState(st countdown.State) {
	payload, err := FormatState(st, r.command(st), r.now())
	if err != nil {
		slog.Warn("Failed to format state payload", "error", err)
		return
	}
	r.publish(StateTopic, 0, true, payload)
}

// OnReading is a sensor observer. Readings arriving faster than the
// sensor period are dropped.
func (r *Reporter) OnReading(reading sensor.Reading) {
	if !r.limiter.Allow() {
		return
	}
	payload, err := FormatSensor(reading)
	if err != nil {
		slog.Warn("Failed to format sensor payload", "error", err)
		return
	}
	r.publish(SensorTopic, 0, false, payload)
}

func (r *Reporter) publish(name string, qos byte, retained bool, payload []byte) {
	if err := r.pub.Publish(r.topic(name), qos, retained, payload); err != nil {
		slog.Warn("Telemetry publish failed", "topic", r.topic(name), "error", err)
	}
}
