//go:build !linux

package platform

import (
	"errors"
	"os"

	"lautenbacher.net/gowave/config"
)

func newRealPlatform(conf *config.Config, ossignal chan os.Signal) (Platform, error) {
	return nil, errors.New("platform: real hardware requires linux")
}
