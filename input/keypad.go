package input

import (
	"time"

	"lautenbacher.net/gowave/clock"
	"lautenbacher.net/gowave/hardware"
)

const (
	keypadRows = 4
	keypadCols = 3
)

var keypadLayout = [keypadRows][keypadCols]rune{
	{'1', '2', '3'},
	{'4', '5', '6'},
	{'7', '8', '9'},
	{'*', '0', '#'},
}

// Keypad scans the 4x3 matrix. A column that reads low is only taken
// as a key press if it still reads low after the settle delay.
type Keypad struct {
	matrix hardware.KeypadMatrix
	clock  clock.Clock
	settle time.Duration
}

func NewKeypad(matrix hardware.KeypadMatrix, clk clock.Clock, settle time.Duration) *Keypad {
	return &Keypad{matrix: matrix, clock: clk, settle: settle}
}

// Poll drives one row low at a time and samples the columns. It returns
// the first debounced key found; all rows are released afterwards so
// the next press raises a column edge again.
func (k *Keypad) Poll() (rune, bool) {
	defer k.matrix.DriveRow(-1)

	for row := 0; row < keypadRows; row++ {
		k.matrix.DriveRow(row)
		for col := 0; col < keypadCols; col++ {
			if !k.matrix.ColumnLow(col) {
				continue
			}
			clock.Sleep(k.clock, k.settle, nil)
			if k.matrix.ColumnLow(col) {
				return keypadLayout[row][col], true
			}
		}
	}
	return 0, false
}

// KeyPosition returns row and column of key on the keypad.
func KeyPosition(key rune) (row, col int, ok bool) {
	for r, keys := range keypadLayout {
		for c, k := range keys {
			if k == key {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}
