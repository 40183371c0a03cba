package platform

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/hardware"
)

const (
	lcdCols = 16
	lcdRows = 2
)

type AbstractPlatform struct {
	config         *config.Config
	interrupts     chan hardware.Interrupt
	readyChan      chan bool
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newAbstractPlatform(conf *config.Config) *AbstractPlatform {
	return &AbstractPlatform{
		config:     conf,
		interrupts: make(chan hardware.Interrupt, 16),
		readyChan:  make(chan bool),
	}
}

func (s *AbstractPlatform) Interrupts() <-chan hardware.Interrupt {
	return s.interrupts
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

// raise queues an interrupt. Edge handlers must never block, so an
// interrupt arriving while the queue is full is dropped.
func (s *AbstractPlatform) raise(source hardware.IRQSource, flags uint8) {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	if s.isShuttingDown {
		return
	}
	select {
	case s.interrupts <- hardware.Interrupt{Source: source, Flags: flags, Timestamp: time.Now()}:
	default:
		slog.Debug("Interrupt queue full, dropping edge", "source", source, "flags", flags)
	}
}

// presetBitsByPin maps GPIO pin numbers to preset port bits.
func presetBitsByPin(presets []config.PresetConfig) map[int]uint8 {
	bits := make(map[int]uint8, len(presets))
	for _, p := range presets {
		bits[p.Pin] = p.Bit
	}
	return bits
}

// presetLevels folds active-low line values into the preset port
// pattern: a line reading 0 sets its bit.
func presetLevels(values []int, bits []uint8) uint8 {
	var levels uint8
	for i, v := range values {
		if i < len(bits) && v == 0 {
			levels |= 1 << bits[i]
		}
	}
	return levels
}

// textBuffer is an in-memory character display. It backs the simulated
// LCDs and the auxiliary sensor display on real hardware.
type textBuffer struct {
	mu    sync.Mutex
	lines [][]rune
}

func newTextBuffer(cols, rows int) *textBuffer {
	b := &textBuffer{lines: make([][]rune, rows)}
	for i := range b.lines {
		b.lines[i] = []rune(strings.Repeat(" ", cols))
	}
	return b
}

// Write places text at row/col, clipping at the right edge.
func (b *textBuffer) Write(text string, row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if row < 0 || row >= len(b.lines) || col < 0 {
		return
	}
	line := b.lines[row]
	for i, r := range []rune(text) {
		if col+i >= len(line) {
			break
		}
		line[col+i] = r
	}
}

func (b *textBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, line := range b.lines {
		for i := range line {
			line[i] = ' '
		}
	}
}

func (b *textBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	for i, line := range b.lines {
		out[i] = string(line)
	}
	return out
}
