package platform

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/gowave/sensor"
)

func TestCalculateStats(t *testing.T) {
	stats := calculateStats([]float64{50, 10, 40, 20, 30})

	assert.Equal(t, 10.0, stats.min)
	assert.Equal(t, 50.0, stats.max)
	assert.Equal(t, 30.0, stats.mean)
	assert.Equal(t, 30.0, stats.median)
	assert.InDelta(t, math.Sqrt(200), stats.stdDev, 1e-9)
}

func TestCalculateStats_Empty(t *testing.T) {
	assert.Equal(t, sensorStats{}, calculateStats(nil))
}

func TestCalculateStats_EvenLength(t *testing.T) {
	data := []float64{40, 10, 30, 20}
	stats := calculateStats(data)
	assert.Equal(t, 25.0, stats.median)
	assert.Equal(t, []float64{40, 10, 30, 20}, data, "input must not be reordered")
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, strings.Repeat(" ", 5), sparkline(nil, 5))
	assert.Equal(t, "▁▁▁  ", sparkline([]float64{3, 3, 3}, 5))
	assert.Equal(t, "▁█", sparkline([]float64{0, 1}, 2))

	// Only the most recent values fit
	line := sparkline([]float64{100, 0, 1, 2}, 3)
	assert.Equal(t, "▁▅█", line)
	assert.Equal(t, 3, utf8.RuneCountInString(line))
}

func TestSensorHistory(t *testing.T) {
	h := newSensorHistory()
	for i := range maxSensorHistory + 10 {
		h.Add(sensor.Reading{TempF: float32(i)})
	}
	h.Add(sensor.Reading{HasVelocity: true, Velocity: 2, TempF: 200})

	assert.Equal(t, 1, h.velocity.Len())
	assert.Equal(t, maxSensorHistory, h.tempF.Len())
	assert.Equal(t, 200.0, h.tempF.Back())

	lines := h.Lines()
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Vel")
	assert.Contains(t, lines[2], "200.00")
}
