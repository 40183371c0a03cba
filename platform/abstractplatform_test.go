package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/hardware"
)

func TestRaise_DropsWhenQueueFull(t *testing.T) {
	conf := config.Default()
	p := newAbstractPlatform(&conf)

	for range cap(p.interrupts) + 3 {
		p.raise(hardware.KeypadIRQ, 0)
	}
	assert.Len(t, p.interrupts, cap(p.interrupts))

	irq := <-p.Interrupts()
	assert.Equal(t, hardware.KeypadIRQ, irq.Source)
	assert.False(t, irq.Timestamp.IsZero())
}

func TestRaise_IgnoredInShutdown(t *testing.T) {
	conf := config.Default()
	p := newAbstractPlatform(&conf)

	p.raise(hardware.PresetIRQ, 0x02)
	p.setInShutdown()
	p.raise(hardware.PresetIRQ, 0x04)

	require.Len(t, p.interrupts, 1)
	irq := <-p.interrupts
	assert.Equal(t, uint8(0x02), irq.Flags)
}

func TestPresetBitsByPin(t *testing.T) {
	bits := presetBitsByPin(config.Default().Presets)

	assert.Len(t, bits, 6)
	assert.Equal(t, uint8(0), bits[4])
	assert.Equal(t, uint8(7), bits[20])
	_, ok := bits[99]
	assert.False(t, ok)
}

func TestPresetLevels(t *testing.T) {
	bits := []uint8{0, 1, 4, 7}

	assert.Equal(t, uint8(0), presetLevels([]int{1, 1, 1, 1}, bits))
	assert.Equal(t, uint8(0x91), presetLevels([]int{0, 1, 0, 0}, bits))
	// Extra values without a bit are ignored
	assert.Equal(t, uint8(0x02), presetLevels([]int{1, 0, 1, 1, 0}, bits))
}

func TestTextBuffer(t *testing.T) {
	b := newTextBuffer(lcdCols, lcdRows)
	assert.Equal(t, []string{"                ", "                "}, b.Lines())

	b.Write("Time left!", 0, 0)
	b.Write("02:30", 1, 11)
	assert.Equal(t, "Time left!      ", b.Lines()[0])
	assert.Equal(t, "           02:30", b.Lines()[1])

	// Clipped at the right edge, out of range rows are ignored
	b.Write("123456", 1, 13)
	b.Write("nope", 2, 0)
	b.Write("nope", 0, -1)
	assert.Equal(t, "           02123", b.Lines()[1])
	assert.Equal(t, "Time left!      ", b.Lines()[0])

	b.Clear()
	assert.Equal(t, "                ", b.Lines()[0])
}
