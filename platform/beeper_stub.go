//go:build !cgo
// +build !cgo

package platform

import "errors"

// Beeper is a stub for builds without cgo.
type Beeper struct{}

func NewBeeper(toneHz float64) (*Beeper, error) {
	return nil, errors.New("buzzer sound requires a cgo build")
}

func (b *Beeper) SetTone(on bool) {}

func (b *Beeper) Close() error {
	return nil
}
