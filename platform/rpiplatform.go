//go:build linux

package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"github.com/warthog618/go-gpiocdev"

	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/hardware"
	"lautenbacher.net/gowave/sensor"
)

// pwmClock makes one PWM count last one microsecond.
const pwmClock = 1000000

// RaspberryPiPlatform drives the appliance through go-rpio (rows,
// buzzer, PWM servo, SPI, LCD) and go-gpiocdev (edge interrupts on the
// keypad columns and the preset buttons).
type RaspberryPiPlatform struct {
	*AbstractPlatform
	ossignal     chan os.Signal
	rows         []rpio.Pin
	columns      *gpiocdev.Lines
	presetLines  *gpiocdev.Lines
	presetBits   []uint8
	presetByPin  map[int]uint8
	buzzerPin    rpio.Pin
	servoPin     rpio.Pin
	servoCycle   uint32
	spiOpen      bool
	spiMutex     sync.Mutex
	analog       hardware.AnalogInput
	serialADC    *SerialADC
	lcd          *hardware.HD44780
	aux          *textBuffer
	sensorViewer *SensorViewer
	scanning     atomic.Bool
	opened       bool
}

func newRealPlatform(conf *config.Config, ossignal chan os.Signal) (Platform, error) {
	return NewRaspberryPiPlatform(conf, ossignal), nil
}

func NewRaspberryPiPlatform(conf *config.Config, ossignal chan os.Signal) *RaspberryPiPlatform {
	inst := &RaspberryPiPlatform{
		ossignal:    ossignal,
		aux:         newTextBuffer(lcdCols, lcdRows),
		presetByPin: presetBitsByPin(conf.Presets),
	}
	inst.AbstractPlatform = newAbstractPlatform(conf)
	return inst
}

func (s *RaspberryPiPlatform) Keypad() hardware.KeypadMatrix       { return rpiKeypad{s} }
func (s *RaspberryPiPlatform) PresetPort() hardware.PresetPort     { return s }
func (s *RaspberryPiPlatform) Servo() hardware.Servo               { return s }
func (s *RaspberryPiPlatform) Buzzer() hardware.Buzzer             { return s }
func (s *RaspberryPiPlatform) Analog() hardware.AnalogInput        { return s.analog }
func (s *RaspberryPiPlatform) TimerDisplay() hardware.TextDisplay  { return s.lcd }
func (s *RaspberryPiPlatform) SensorDisplay() hardware.TextDisplay { return s.aux }

func (s *RaspberryPiPlatform) OnReading(r sensor.Reading) {
	if s.sensorViewer != nil {
		s.sensorViewer.Update(r)
	}
}

func (s *RaspberryPiPlatform) Start() error {
	hw := s.config.Hardware
	slog.Info("Initialise GPIO, PWM and Spi...")
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	s.opened = true

	s.rows = make([]rpio.Pin, 0, len(s.config.Keypad.RowPins))
	for _, pin := range s.config.Keypad.RowPins {
		row := rpio.Pin(pin)
		row.Output()
		row.Low()
		s.rows = append(s.rows, row)
	}

	s.buzzerPin = rpio.Pin(s.config.Buzzer.Pin)
	s.buzzerPin.Output()
	s.buzzerPin.Low()

	s.servoCycle = uint32(s.config.Servo.Period / time.Microsecond)
	s.servoPin = rpio.Pin(s.config.Servo.Pin)
	s.servoPin.Mode(rpio.Pwm)
	s.servoPin.Freq(pwmClock)
	s.servoPin.DutyCycle(0, s.servoCycle)

	if err := s.startAnalog(hw); err != nil {
		s.Stop()
		return err
	}

	var data [4]hardware.Pin
	for i, pin := range hw.LCD.Data {
		data[i] = newRpioPin(pin)
	}
	s.lcd = hardware.NewHD44780(newRpioPin(hw.LCD.RS), newRpioPin(hw.LCD.E), data, lcdCols, lcdRows, time.Sleep)
	s.lcd.Init()

	if err := s.requestEdgeLines(hw.GPIOChip); err != nil {
		s.Stop()
		return err
	}

	if s.config.SensorViewer {
		s.sensorViewer = NewSensorViewer(s.aux, s.ossignal)
		go s.sensorViewer.Start()
	}

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) startAnalog(hw config.HardwareConfig) error {
	switch hw.ADC.Source {
	case "serial":
		s.serialADC = NewSerialADC(hw.ADC.SerialPort, hw.ADC.BaudRate)
		if err := s.serialADC.Connect(); err != nil {
			return err
		}
		s.analog = s.serialADC
	default:
		if err := rpio.SpiBegin(rpio.Spi0); err != nil {
			return fmt.Errorf("failed to begin spi: %w", err)
		}
		s.spiOpen = true
		rpio.SpiSpeed(hw.ADC.SPIFrequency)
		rpio.SpiChipSelect(0)
		s.analog = hardware.NewMCP3008(rpioSPI{s})
	}
	return nil
}

func (s *RaspberryPiPlatform) requestEdgeLines(chip string) error {
	var err error
	s.columns, err = gpiocdev.RequestLines(chip, s.config.Keypad.ColumnPins,
		gpiocdev.WithConsumer("gowave-keypad"),
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(s.onColumnEdge))
	if err != nil {
		return fmt.Errorf("failed to request keypad columns %v: %w", s.config.Keypad.ColumnPins, err)
	}

	pins := make([]int, 0, len(s.config.Presets))
	s.presetBits = make([]uint8, 0, len(s.config.Presets))
	for _, p := range s.config.Presets {
		pins = append(pins, p.Pin)
		s.presetBits = append(s.presetBits, p.Bit)
	}
	if len(pins) == 0 {
		return nil
	}
	s.presetLines, err = gpiocdev.RequestLines(chip, pins,
		gpiocdev.WithConsumer("gowave-presets"),
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(s.onPresetEdge))
	if err != nil {
		return fmt.Errorf("failed to request preset lines %v: %w", pins, err)
	}
	return nil
}

// onColumnEdge ignores edges caused by the scan itself.
func (s *RaspberryPiPlatform) onColumnEdge(evt gpiocdev.LineEvent) {
	if s.scanning.Load() {
		return
	}
	s.raise(hardware.KeypadIRQ, 0)
}

func (s *RaspberryPiPlatform) onPresetEdge(evt gpiocdev.LineEvent) {
	bit, ok := s.presetByPin[evt.Offset]
	if !ok {
		return
	}
	s.raise(hardware.PresetIRQ, 1<<bit)
}

func (s *RaspberryPiPlatform) Stop() {
	s.setInShutdown()

	var errs []error
	if s.columns != nil {
		errs = append(errs, s.columns.Close())
		s.columns = nil
	}
	if s.presetLines != nil {
		errs = append(errs, s.presetLines.Close())
		s.presetLines = nil
	}
	if s.sensorViewer != nil {
		s.sensorViewer.Stop()
		s.sensorViewer = nil
	}
	if s.serialADC != nil {
		errs = append(errs, s.serialADC.Close())
		s.serialADC = nil
	}
	if !s.opened {
		return
	}
	if s.lcd != nil {
		s.lcd.Clear()
	}

	// Park the actuators before releasing the GPIO memory
	s.servoPin.DutyCycle(0, s.servoCycle)
	s.buzzerPin.Low()
	for _, row := range s.rows {
		row.Low()
	}
	if s.spiOpen {
		rpio.SpiEnd(rpio.Spi0)
		s.spiOpen = false
	}
	errs = append(errs, rpio.Close())
	s.opened = false

	if err := errors.Join(errs...); err != nil {
		slog.Error("Error releasing hardware", "error", err)
	}
}

func (s *RaspberryPiPlatform) PresetLevels() uint8 {
	if s.presetLines == nil {
		return 0
	}
	values := make([]int, len(s.presetBits))
	if err := s.presetLines.Values(values); err != nil {
		slog.Debug("Failed to read preset lines", "error", err)
		return 0
	}
	return presetLevels(values, s.presetBits)
}

func (s *RaspberryPiPlatform) SetDuty(us uint16) {
	s.servoPin.DutyCycle(uint32(us), s.servoCycle)
}

func (s *RaspberryPiPlatform) SetBuzzer(on bool) {
	if on {
		s.buzzerPin.High()
	} else {
		s.buzzerPin.Low()
	}
}

// rpiKeypad scans the rows through rpio and reads the columns through
// the requested gpiocdev lines.
type rpiKeypad struct {
	p *RaspberryPiPlatform
}

func (k rpiKeypad) DriveRow(row int) {
	k.p.scanning.Store(row >= 0)
	for i, pin := range k.p.rows {
		if row < 0 || i == row {
			pin.Low()
		} else {
			pin.High()
		}
	}
}

func (k rpiKeypad) ColumnLow(col int) bool {
	if k.p.columns == nil {
		return false
	}
	values := make([]int, len(k.p.config.Keypad.ColumnPins))
	if err := k.p.columns.Values(values); err != nil {
		slog.Debug("Failed to read keypad columns", "error", err)
		return false
	}
	return col >= 0 && col < len(values) && values[col] == 0
}

type rpioPin struct {
	pin rpio.Pin
}

func newRpioPin(pin int) rpioPin {
	p := rpioPin{pin: rpio.Pin(pin)}
	p.pin.Output()
	p.pin.Low()
	return p
}

func (p rpioPin) Set(high bool) {
	if high {
		p.pin.High()
	} else {
		p.pin.Low()
	}
}

type rpioSPI struct {
	p *RaspberryPiPlatform
}

func (s rpioSPI) Exchange(write []byte) []byte {
	s.p.spiMutex.Lock()
	defer s.p.spiMutex.Unlock()
	buf := append([]byte(nil), write...)
	rpio.SpiExchange(buf)
	return buf
}
