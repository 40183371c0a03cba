package display

import (
	"strings"
	"sync"

	"lautenbacher.net/gowave/hardware"
)

// LCD writes frames to a text display, touching only rows that changed.
// Rows are padded to Width so shorter text overwrites longer text.
type LCD struct {
	mu    sync.Mutex
	out   hardware.TextDisplay
	shown [2]string
	valid bool
}

func NewLCD(out hardware.TextDisplay) *LCD {
	return &LCD{out: out}
}

func (l *LCD) Show(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for row := 0; row < 2; row++ {
		text := pad(f.Line(row))
		if l.valid && l.shown[row] == text {
			continue
		}
		l.out.Write(text, row, 0)
		l.shown[row] = text
	}
	l.valid = true
}

// pad fits s to one display row. Text past Width is cut off, as on the
// real 16 column LCD; only clock values of 100 minutes or more reach it.
func pad(s string) string {
	if len(s) >= Width {
		return s[:Width]
	}
	return s + strings.Repeat(" ", Width-len(s))
}
