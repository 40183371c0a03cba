package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// holdingWriter keeps log output in memory until a live target is
// attached (the TUI log pane only exists after the first draw) and
// optionally tees everything to a file.
type holdingWriter struct {
	mu      sync.Mutex
	held    bytes.Buffer
	target  io.Writer
	file    *os.File
	holding bool
}

func (w *holdingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	switch {
	case w.holding:
		w.held.Write(p)
	case w.target != nil:
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}

	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

// Options selects level, handler format and an optional log file.
type Options struct {
	Level  string
	Format string
	File   string
	// Hold buffers output until SetOutput is called.
	Hold bool
}

var writer = &holdingWriter{target: os.Stderr}

// Init installs a new default slog logger. Calling Init again (on a
// config reload) closes the previous log file first.
func Init(opts Options) error {
	if err := Close(); err != nil {
		return err
	}

	w := &holdingWriter{holding: opts.Hold}
	if !opts.Hold {
		w.target = os.Stderr
	}
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w.file = file
	}
	writer = w

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// ParseLevel maps a config string to a slog level, INFO if unknown.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput flushes held output to newTarget and starts live logging.
func SetOutput(newTarget io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.held.Len() > 0 {
		if _, err := newTarget.Write(writer.held.Bytes()); err != nil {
			return err
		}
		writer.held.Reset()
	}
	writer.target = newTarget
	writer.holding = false
	return nil
}

// HoldOutput detaches the live target and starts buffering again. Used
// while the TUI is torn down.
func HoldOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.target = nil
	writer.holding = true
}

// Close closes the log file. Output still held without a file to tee to
// would be lost, so it goes to stderr.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.held.Len() > 0 && writer.file == nil {
		if _, err := os.Stderr.Write(writer.held.Bytes()); err != nil {
			firstErr = err
		}
	}
	writer.held.Reset()
	if writer.file != nil {
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		writer.file = nil
	}
	return firstErr
}
