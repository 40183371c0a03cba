package platform

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/hardware"
	"lautenbacher.net/gowave/logging"
	"lautenbacher.net/gowave/sensor"
)

const refreshInterval = 100 * time.Millisecond

var servoGlyphs = []string{"|", "/", "-", "\\"}

type TUIPlatform struct {
	*AbstractPlatform
	tviewapp      *tview.Application
	intro         *tview.TextView
	lcdView       *tview.TextView
	actuatorView  *tview.TextView
	sensorView    *tview.TextView
	logView       *tview.TextView
	ossignalChan  chan os.Signal
	keypad        *simKeypad
	presetPort    *simPresetPort
	servo         *simServo
	buzzer        *simBuzzer
	adc           *simADC
	beeper        *Beeper
	lcd           *textBuffer
	aux           *textBuffer
	history       *sensorHistory
	glyph         int
	logFlushOnce  sync.Once
	displayWg     sync.WaitGroup
	displayStop   chan bool
	releaseTimers []*time.Timer
	timersMu      sync.Mutex
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		ossignalChan: ossignalchan,
		keypad:       newSimKeypad(),
		presetPort:   &simPresetPort{},
		servo:        &simServo{},
		buzzer:       &simBuzzer{},
		lcd:          newTextBuffer(lcdCols, lcdRows),
		aux:          newTextBuffer(lcdCols, lcdRows),
		history:      newSensorHistory(),
		displayStop:  make(chan bool),
	}
	inst.AbstractPlatform = newAbstractPlatform(conf)
	inst.adc = newSimADC(conf.Sensors, inst.servo, clock.New())
	return inst
}

func (s *TUIPlatform) Keypad() hardware.KeypadMatrix       { return s.keypad }
func (s *TUIPlatform) PresetPort() hardware.PresetPort     { return s.presetPort }
func (s *TUIPlatform) Servo() hardware.Servo               { return s.servo }
func (s *TUIPlatform) Buzzer() hardware.Buzzer             { return s.buzzer }
func (s *TUIPlatform) Analog() hardware.AnalogInput        { return s.adc }
func (s *TUIPlatform) TimerDisplay() hardware.TextDisplay  { return s.lcd }
func (s *TUIPlatform) SensorDisplay() hardware.TextDisplay { return s.aux }

func (s *TUIPlatform) OnReading(r sensor.Reading) {
	s.history.Add(r)
}

func (s *TUIPlatform) Start() error {
	if s.config.Simulation.Sound {
		beeper, err := NewBeeper(s.config.Simulation.ToneHz)
		if err != nil {
			slog.Warn("Buzzer sound not available", "error", err)
		} else {
			s.beeper = beeper
			s.buzzer.tone = beeper.SetTone
		}
	}

	s.initSimulationTUI(s.ossignalChan)

	s.displayWg.Add(1)
	go s.displayDriver()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.setInShutdown()

	s.timersMu.Lock()
	for _, t := range s.releaseTimers {
		t.Stop()
	}
	s.releaseTimers = nil
	s.timersMu.Unlock()

	close(s.displayStop)
	s.displayWg.Wait()

	if s.beeper != nil {
		if err := s.beeper.Close(); err != nil {
			slog.Error("Error closing beeper", "error", err)
		}
	}
	// The log pane goes away with the TUI
	logging.HoldOutput()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

// displayDriver redraws the simulated hardware panes periodically; the
// servo glyph needs animating even when nothing else changes.
func (s *TUIPlatform) displayDriver() {
	defer s.displayWg.Done()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.displayStop:
			slog.Debug("Ending DisplayDriver go-routine...")
			return
		case <-ticker.C:
			s.tviewapp.QueueUpdateDraw(s.simulateHardware)
		}
	}
}

// getIntroText generates the text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	presets := append([]config.PresetConfig(nil), s.config.Presets...)
	sort.Slice(presets, func(i, j int) bool { return presets[i].Key < presets[j].Key })
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, fmt.Sprintf("[blue]%s[-] %s %d:%02d", p.Key, p.Name, p.Minutes, p.Seconds))
	}

	line1 := "Hit [blue]0[-]...[blue]9[-], [blue]*[-], [blue]#[-] to press a key on the keypad"
	line2 := strings.Join(names, " | ")
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI(ossignal chan os.Signal) {
	s.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" GOWAVE Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- LCD Pane ---
	s.lcdView = tview.NewTextView().SetDynamicColors(true)
	s.lcdView.SetBorder(true).SetTitle(" LCD ").SetTitleColor(tcell.ColorLightBlue)
	s.lcdView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Servo and buzzer Pane ---
	s.actuatorView = tview.NewTextView().SetDynamicColors(true)
	s.actuatorView.SetBorder(true).SetTitle(" Turntable ").SetTitleColor(tcell.ColorLightBlue)
	s.actuatorView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Sensor Pane ---
	s.sensorView = tview.NewTextView().SetDynamicColors(true)
	s.sensorView.SetBorder(true).SetTitle(" Sensors ").SetTitleColor(tcell.ColorLightBlue)
	s.sensorView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	hardwareRow := tview.NewFlex().
		AddItem(s.lcdView, lcdCols+4, 0, false).
		AddItem(s.actuatorView, 0, 1, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(hardwareRow, lcdRows+4, 0, false).
		AddItem(s.sensorView, lcdRows+8, 0, false).
		AddItem(s.logView, 0, 1, true)

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			if err := logging.SetOutput(logWriter); err != nil {
				slog.Error("Failed to attach log pane", "error", err)
			}
			close(s.readyChan)
		})
	})

	// --- Input Handling ---
	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			ossignal <- os.Interrupt
			return nil
		case tcell.KeyRune:
			key := event.Rune()
			switch key {
			case 'q', 'Q':
				ossignal <- os.Interrupt
				return nil
			case 'r', 'R':
				ossignal <- syscall.SIGHUP
				return nil
			}
			if s.pressKey(key) || s.pressPreset(string(key)) {
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// pressKey holds a keypad key for the configured time and raises the
// column edge.
func (s *TUIPlatform) pressKey(key rune) bool {
	if !s.keypad.Press(key) {
		return false
	}
	slog.Debug("Keypad key pressed", "key", string(key))
	s.raise(hardware.KeypadIRQ, 0)
	s.releaseAfter(s.keypad.Release)
	return true
}

func (s *TUIPlatform) pressPreset(key string) bool {
	preset, ok := s.config.PresetByKey(key)
	if !ok {
		return false
	}
	slog.Debug("Preset button pressed", "name", preset.Name, "bit", preset.Bit)
	s.presetPort.Press(preset.Bit)
	s.raise(hardware.PresetIRQ, 1<<preset.Bit)
	s.releaseAfter(func() { s.presetPort.Release(preset.Bit) })
	return true
}

func (s *TUIPlatform) releaseAfter(release func()) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	s.releaseTimers = append(s.releaseTimers, time.AfterFunc(s.config.Simulation.KeyHold, release))
	if len(s.releaseTimers) > 32 {
		s.releaseTimers = s.releaseTimers[len(s.releaseTimers)-32:]
	}
}

// simulateHardware redraws the LCD, turntable and sensor panes.
// This function must be called on the main TUI thread via app.QueueUpdateDraw().
func (s *TUIPlatform) simulateHardware() {
	s.lcdView.SetText(renderLCD(s.lcd.Lines()))

	duty := s.servo.Duty()
	glyph := " "
	if duty > 0 {
		s.glyph = (s.glyph + 1) % len(servoGlyphs)
		glyph = servoGlyphs[s.glyph]
	}
	buzzer := "[gray]silent[-]"
	if s.buzzer.On() {
		buzzer = "[#ff0000]BEEP[-]"
	}
	s.actuatorView.SetText(fmt.Sprintf(" Servo  [yellow]%4dµs[-]  %s\n Buzzer %s", duty, glyph, buzzer))

	aux := s.aux.Lines()
	lines := make([]string, 0, len(aux)+4)
	for _, l := range aux {
		lines = append(lines, " "+tview.Escape(l))
	}
	lines = append(lines, s.history.Lines()...)
	s.sensorView.SetText(strings.Join(lines, "\n"))
}

// renderLCD draws the display lines on a green backlight.
func renderLCD(lines []string) string {
	var buf strings.Builder
	for i, line := range lines {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(" [black:#9acd32]")
		buf.WriteString(tview.Escape(line))
		buf.WriteString("[-:-]")
	}
	return buf.String()
}
