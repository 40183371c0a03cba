package sensor

import (
	"github.com/chewxy/math32"

	"lautenbacher.net/gowave/config"
)

// minNet replaces a non-positive net acceleration under the square root.
const minNet = 0.01

// Converter turns raw ADC counts into physical values using the
// calibration constants of the sensor section.
type Converter struct {
	zeroG       float32
	sensitivity float32
	gravity     float32
	vref        float32
	fullScale   float32
	tempOffset  float32
	voltsPerDeg float32
}

func NewConverter(cfg config.SensorsConfig) Converter {
	return Converter{
		zeroG:       float32(cfg.ZeroGOffset),
		sensitivity: float32(cfg.Sensitivity),
		gravity:     float32(cfg.Gravity),
		vref:        float32(cfg.VRef),
		fullScale:   float32(cfg.FullScale),
		tempOffset:  float32(cfg.TempOffsetVolts),
		voltsPerDeg: float32(cfg.TempVoltsPerDegree),
	}
}

// Acceleration in m/s².
func (c Converter) Acceleration(raw uint16) float32 {
	return ((float32(raw) - c.zeroG) / c.sensitivity) * c.gravity
}

// Temperature returns degrees Celsius and Fahrenheit.
func (c Converter) Temperature(raw uint16) (celsius, fahrenheit float32) {
	volts := float32(raw) * c.vref / c.fullScale
	celsius = (volts - c.tempOffset) / c.voltsPerDeg
	return celsius, celsius*1.8 + 32
}

// AngularSpeed derives rad/s from the centripetal acceleration measured
// at radius meters from the axis.
func AngularSpeed(net, radius float32) float32 {
	if net <= 0 || math32.IsNaN(net) {
		net = minNet
	}
	return math32.Sqrt(net / radius)
}
