package countdown

import "fmt"

// Mode is the controller's explicit state.
type Mode uint8

const (
	// Idle waits for the first digit or a preset.
	Idle Mode = iota
	// Entering accumulates up to MaxDigits digits.
	Entering
	// Running decrements once per tick; all input is locked out.
	Running
	// Expired plays the alert and holds the message, then returns to Idle.
	Expired
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Entering:
		return "entering"
	case Running:
		return "running"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// MarshalText lets the mode appear by name in JSON and log output.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MaxDigits is the length of a complete MMSS entry.
const MaxDigits = 4

// State is the canonical timer state. Values of State are snapshots;
// only Machine mutates the live one.
type State struct {
	Minutes uint8  `json:"minutes"`
	Seconds uint8  `json:"seconds"`
	Mode    Mode   `json:"mode"`
	Pending string `json:"pending"`
}

// Remaining reports the remaining time in seconds.
func (s State) Remaining() int {
	return int(s.Minutes)*60 + int(s.Seconds)
}

func (s State) String() string {
	return fmt.Sprintf("%s %02d:%02d pending=%q", s.Mode, s.Minutes, s.Seconds, s.Pending)
}

// EventKind tags an input event.
type EventKind uint8

const (
	None EventKind = iota
	Digit
	Preset
)

func (k EventKind) String() string {
	switch k {
	case Digit:
		return "digit"
	case Preset:
		return "preset"
	default:
		return "none"
	}
}

// Event is one debounced input, consumed exactly once by Machine.Apply.
type Event struct {
	Kind    EventKind
	Digit   rune
	Minutes uint8
	Seconds uint8
}

func DigitEvent(d rune) Event {
	return Event{Kind: Digit, Digit: d}
}

func PresetEvent(minutes, seconds uint8) Event {
	return Event{Kind: Preset, Minutes: minutes, Seconds: seconds}
}

func (e Event) String() string {
	switch e.Kind {
	case Digit:
		return fmt.Sprintf("digit(%c)", e.Digit)
	case Preset:
		return fmt.Sprintf("preset(%d:%02d)", e.Minutes, e.Seconds)
	default:
		return "none"
	}
}

// parseEntry turns a complete MMSS entry into minutes and seconds,
// carrying seconds >= 60 into the minutes.
func parseEntry(digits string) (uint8, uint8) {
	minutes := int(digits[0]-'0')*10 + int(digits[1]-'0')
	seconds := int(digits[2]-'0')*10 + int(digits[3]-'0')
	minutes += seconds / 60
	seconds %= 60
	return uint8(minutes), uint8(seconds)
}
