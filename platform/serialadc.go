package platform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// ErrNoSample is returned until the first complete line has arrived.
var ErrNoSample = errors.New("no sample received yet")

// SerialADC reads the analog channels from a microcontroller that
// streams one "a0,a1" line per sample.
type SerialADC struct {
	port     string
	baudRate int

	mu     sync.RWMutex
	conn   serial.Port
	values []uint16
	done   chan struct{}
}

func NewSerialADC(port string, baudRate int) *SerialADC {
	return &SerialADC{port: port, baudRate: baudRate}
}

// Connect opens the port and starts the reader goroutine.
func (d *SerialADC) Connect() error {
	conn, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	d.mu.Lock()
	d.conn = conn
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.readSamples(conn, d.done)
	return nil
}

// Close closes the port, which ends the reader.
func (d *SerialADC) Close() error {
	d.mu.Lock()
	conn, done := d.conn, d.done
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

func (d *SerialADC) ReadChannel(ch int) (uint16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.values == nil {
		return 0, ErrNoSample
	}
	if ch < 0 || ch >= len(d.values) {
		return 0, fmt.Errorf("serial adc has no channel %d", ch)
	}
	return d.values[ch], nil
}

func (d *SerialADC) readSamples(r io.Reader, done chan struct{}) {
	defer close(done)
	d.consume(r)
}

// consume stores every well formed line read from r until EOF.
func (d *SerialADC) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		values, err := parseSampleLine(line)
		if err != nil {
			slog.Debug("Failed to parse serial sample", "line", line, "error", err)
			continue
		}
		d.mu.Lock()
		d.values = values
		d.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("Serial reader stopped", "port", d.port, "error", err)
	}
}

func parseSampleLine(line string) ([]uint16, error) {
	fields := strings.Split(line, ",")
	values := make([]uint16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid sample %q: %w", f, err)
		}
		values = append(values, uint16(v))
	}
	return values, nil
}
