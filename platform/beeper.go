//go:build cgo
// +build cgo

package platform

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const beeperSampleRate = 44100

// Beeper plays a sine tone on the default audio output while the
// simulated buzzer is on.
type Beeper struct {
	stream *portaudio.Stream
	on     atomic.Bool
	phase  float64
	step   float64
}

func NewBeeper(toneHz float64) (*Beeper, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	b := &Beeper{step: 2 * math.Pi * toneHz / beeperSampleRate}

	stream, err := portaudio.OpenDefaultStream(0, 1, beeperSampleRate, 0, b.fill)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	b.stream = stream
	return b, nil
}

func (b *Beeper) SetTone(on bool) {
	b.on.Store(on)
}

// fill runs on the portaudio callback thread.
func (b *Beeper) fill(out []float32) {
	if !b.on.Load() {
		for i := range out {
			out[i] = 0
		}
		return
	}
	for i := range out {
		out[i] = float32(0.2 * math.Sin(b.phase))
		b.phase += b.step
		if b.phase > 2*math.Pi {
			b.phase -= 2 * math.Pi
		}
	}
}

func (b *Beeper) Close() error {
	var firstErr error
	if err := b.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := b.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
