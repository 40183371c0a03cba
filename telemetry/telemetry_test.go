package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/gowave/actuator"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/sensor"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func commandFor(st countdown.State) actuator.Command {
	return actuator.CommandFor(st.Mode, 1500, false)
}

func newReporter(pub Publisher) *Reporter {
	return NewReporter(pub, "kitchen/gowave", time.Hour, commandFor, func() time.Time { return fixedTime })
}

func TestFormatState(t *testing.T) {
	st := countdown.State{Mode: countdown.Running, Minutes: 2, Seconds: 5}
	payload, err := FormatState(st, commandFor(st), fixedTime)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timestamp": "2024-03-01T12:00:00Z",
		"mode": "running",
		"minutes": 2,
		"seconds": 5,
		"remaining": "02:05",
		"remainingSeconds": 125,
		"pending": "",
		"servoDuty": 1500,
		"buzzerActive": false
	}`, string(payload))
}

func TestFormatSensor(t *testing.T) {
	r := sensor.Reading{Timestamp: fixedTime, RawAccel: 2615, RawTemp: 8192, TempC: 12.5, TempF: 54.5}
	payload, err := FormatSensor(r)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"velocity":null`)

	r.HasVelocity = true
	r.Velocity = 2.5
	payload, err = FormatSensor(r)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"velocity":2.5`)
	assert.Contains(t, string(payload), `"tempF":54.5`)
}

func TestReporter_PublishesStatesRetained(t *testing.T) {
	pub := NewFakePublisher()
	reporter := newReporter(pub)
	machine := countdown.NewMachine(1500)
	states := machine.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reporter.Run(ctx, states)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.Messages("kitchen/gowave/state")) == 1 }, time.Second, time.Millisecond)
	require.True(t, machine.SelectPreset(1, 30))
	require.Eventually(t, func() bool { return len(pub.Messages("kitchen/gowave/state")) == 2 }, time.Second, time.Millisecond)

	cancel()
	<-done

	last := pub.Messages("kitchen/gowave/state")[1]
	assert.True(t, last.Retained)
	assert.Contains(t, string(last.Payload), `"mode":"running"`)
	assert.Contains(t, string(last.Payload), `"servoDuty":1500`)

	online := pub.Messages("kitchen/gowave/online")
	require.Len(t, online, 2)
	assert.Equal(t, "true", string(online[0].Payload))
	assert.Equal(t, "false", string(online[1].Payload))
}

func TestReporter_ThrottlesSensorReadings(t *testing.T) {
	pub := NewFakePublisher()
	reporter := newReporter(pub)

	for i := 0; i < 5; i++ {
		reporter.OnReading(sensor.Reading{Timestamp: fixedTime})
	}
	assert.Len(t, pub.Messages("kitchen/gowave/sensor"), 1)
}

func TestReporter_PublishErrorIsNotFatal(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("broker gone")
	reporter := newReporter(pub)

	assert.NotPanics(t, func() {
		reporter.PublishState(countdown.State{Mode: countdown.Idle})
		reporter.OnReading(sensor.Reading{})
	})
	assert.Empty(t, pub.Messages(""))
}
