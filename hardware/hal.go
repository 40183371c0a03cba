// Package hardware describes the appliance's peripherals as small
// interfaces. The platform backends (terminal simulation, Raspberry Pi)
// implement them; the timer core only ever sees these.
package hardware

import (
	"fmt"
	"time"
)

// IRQSource identifies the pin bank that raised an interrupt.
type IRQSource uint8

const (
	KeypadIRQ IRQSource = iota
	PresetIRQ
)

func (s IRQSource) String() string {
	switch s {
	case KeypadIRQ:
		return "keypad"
	case PresetIRQ:
		return "preset"
	default:
		return fmt.Sprintf("irq(%d)", uint8(s))
	}
}

// Interrupt is one edge event. For PresetIRQ, Flags has the bit of
// every preset line that saw a falling edge.
type Interrupt struct {
	Source    IRQSource
	Flags     uint8
	Timestamp time.Time
}

// KeypadMatrix is the 4x3 keypad: rows are outputs, columns are pulled
// up inputs that read low while a key on the driven row is held.
type KeypadMatrix interface {
	// DriveRow pulls row low and every other row high. A negative row
	// releases all rows (all low, so any key press raises an edge).
	DriveRow(row int)
	ColumnLow(col int) bool
}

// PresetPort reads the current levels of the preset buttons, one bit
// per button, 1 meaning pressed.
type PresetPort interface {
	PresetLevels() uint8
}

// Servo is a single PWM channel with a fixed period. The duty is the
// pulse width in microseconds, 0 switches the output off.
type Servo interface {
	SetDuty(us uint16)
}

type Buzzer interface {
	SetBuzzer(on bool)
}

// AnalogInput samples an ADC channel on demand.
type AnalogInput interface {
	ReadChannel(ch int) (uint16, error)
}

// TextDisplay is a character display addressed by row and column.
type TextDisplay interface {
	Write(text string, row, col int)
	Clear()
}

// SPI exchanges a full-duplex frame.
type SPI interface {
	Exchange(write []byte) []byte
}

// Pin is a digital output used by bit-banged drivers.
type Pin interface {
	Set(high bool)
}
