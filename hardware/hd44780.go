package hardware

import (
	"sync"
	"time"
)

// HD44780 drives a character LCD in 4 bit mode. Only writes are
// supported; RW is expected to be tied low.
type HD44780 struct {
	mu    sync.Mutex
	rs    Pin
	e     Pin
	data  [4]Pin
	cols  int
	rows  int
	sleep func(time.Duration)
}

const (
	lcdClear       = 0x01
	lcdEntryMode   = 0x06
	lcdDisplayOn   = 0x0C
	lcdFunction4x2 = 0x28
	lcdSetDDRAM    = 0x80
)

var lcdRowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

func NewHD44780(rs, e Pin, data [4]Pin, cols, rows int, sleep func(time.Duration)) *HD44780 {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &HD44780{rs: rs, e: e, data: data, cols: cols, rows: rows, sleep: sleep}
}

// Init runs the 4 bit initialisation sequence from the datasheet.
func (l *HD44780) Init() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sleep(50 * time.Millisecond)
	l.rs.Set(false)
	for _, wait := range []time.Duration{5 * time.Millisecond, 200 * time.Microsecond, 200 * time.Microsecond} {
		l.nibble(0x03)
		l.sleep(wait)
	}
	l.nibble(0x02)
	l.command(lcdFunction4x2)
	l.command(lcdDisplayOn)
	l.command(lcdClear)
	l.sleep(2 * time.Millisecond)
	l.command(lcdEntryMode)
}

func (l *HD44780) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.command(lcdClear)
	l.sleep(2 * time.Millisecond)
}

// Write places text at row/col, cut off at the right edge.
func (l *HD44780) Write(text string, row, col int) {
	if row < 0 || row >= l.rows || col < 0 || col >= l.cols {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.command(lcdSetDDRAM | (lcdRowOffsets[row] + byte(col)))
	n := 0
	for _, r := range text {
		if col+n >= l.cols {
			break
		}
		if r > 0xFF {
			r = '?'
		}
		l.data8(byte(r))
		n++
	}
}

func (l *HD44780) command(b byte) {
	l.rs.Set(false)
	l.byte(b)
}

func (l *HD44780) data8(b byte) {
	l.rs.Set(true)
	l.byte(b)
}

func (l *HD44780) byte(b byte) {
	l.nibble(b >> 4)
	l.nibble(b & 0x0F)
	l.sleep(50 * time.Microsecond)
}

func (l *HD44780) nibble(n byte) {
	for i, pin := range l.data {
		pin.Set(n&(1<<i) != 0)
	}
	l.e.Set(true)
	l.e.Set(false)
}
