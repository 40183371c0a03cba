package platform

import (
	"os"

	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/hardware"
	"lautenbacher.net/gowave/sensor"
)

// Platform abstracts the real hardware from the TUI simulation.
type Platform interface {
	// Start opens GPIO/SPI or starts the TUI.
	Start() error

	// Stop releases all platform resources and parks the actuators.
	Stop()

	// Ready is closed once the platform is usable.
	Ready() <-chan bool

	// Interrupts delivers keypad and preset edges.
	Interrupts() <-chan hardware.Interrupt

	Keypad() hardware.KeypadMatrix
	PresetPort() hardware.PresetPort
	Servo() hardware.Servo
	Buzzer() hardware.Buzzer
	Analog() hardware.AnalogInput
	TimerDisplay() hardware.TextDisplay
	SensorDisplay() hardware.TextDisplay

	// OnReading lets the platform show sensor history.
	OnReading(r sensor.Reading)
}

// New returns the Raspberry Pi platform if conf.RealHW is set, the TUI
// simulation otherwise.
func New(conf *config.Config, ossignal chan os.Signal) (Platform, error) {
	if conf.RealHW {
		return newRealPlatform(conf, ossignal)
	}
	return NewTUIPlatform(conf, ossignal), nil
}
