package input

import (
	"sort"

	"lautenbacher.net/gowave/config"
)

// Preset is a cooking time bound to one bit of the preset port.
type Preset struct {
	Bit     uint8
	Name    string
	Minutes uint8
	Seconds uint8
}

// PresetBank decodes preset port bit patterns.
type PresetBank struct {
	presets []Preset // ordered by bit
}

func NewPresetBank(presets []Preset) *PresetBank {
	sorted := append([]Preset(nil), presets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Bit < sorted[j].Bit })
	return &PresetBank{presets: sorted}
}

func PresetsFromConfig(cfgs []config.PresetConfig) []Preset {
	presets := make([]Preset, 0, len(cfgs))
	for _, c := range cfgs {
		presets = append(presets, Preset{Bit: c.Bit, Name: c.Name, Minutes: c.Minutes, Seconds: c.Seconds})
	}
	return presets
}

// Decode maps a pattern to the preset of its lowest mapped bit. A
// pattern without any mapped bit is not a preset.
func (b *PresetBank) Decode(pattern uint8) (Preset, bool) {
	for _, p := range b.presets {
		if pattern&(1<<p.Bit) != 0 {
			return p, true
		}
	}
	return Preset{}, false
}
