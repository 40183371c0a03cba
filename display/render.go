package display

import (
	"fmt"
	"strings"

	"lautenbacher.net/gowave/countdown"
)

const (
	Width = 16
	// ValueColumn is where typed digits and the remaining time start.
	ValueColumn = 11

	EnterLabel   = "Enter Time:"
	RunningLabel = "Time left!"
	ExpiredLabel = "Time's up!"
)

// Frame is the content of the two display lines.
type Frame struct {
	Line0 string
	Line1 string
}

// Line returns line row of f.
func (f Frame) Line(row int) string {
	if row == 1 {
		return f.Line1
	}
	return f.Line0
}

// Render formats the timer state for the display. It is a pure
// function of s.
func Render(s countdown.State) Frame {
	switch s.Mode {
	case countdown.Entering:
		return Frame{Line0: field(EnterLabel, s.Pending)}
	case countdown.Running:
		return Frame{Line0: field(RunningLabel, FormatClock(s.Minutes, s.Seconds))}
	case countdown.Expired:
		return Frame{Line0: ExpiredLabel}
	default:
		return Frame{Line0: EnterLabel}
	}
}

// FormatClock renders minutes and seconds as zero padded MM:SS.
func FormatClock(minutes, seconds uint8) string {
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// field places value at ValueColumn behind label.
func field(label, value string) string {
	if len(label) < ValueColumn {
		label += strings.Repeat(" ", ValueColumn-len(label))
	}
	return label + value
}
