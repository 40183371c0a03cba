package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "gowave_config.yml"

// Config is the complete runtime configuration. RealHW and SensorViewer
// come from the command line.
type Config struct {
	RealHW       bool            `yaml:"-"`
	SensorViewer bool            `yaml:"-"`
	ConfigFile   string          `yaml:"-"`
	Timer        TimerConfig     `yaml:"Timer"`
	Keypad       KeypadConfig    `yaml:"Keypad"`
	Presets      []PresetConfig  `yaml:"Presets"`
	Servo        ServoConfig     `yaml:"Servo"`
	Buzzer       BuzzerConfig    `yaml:"Buzzer"`
	Sensors      SensorsConfig   `yaml:"Sensors"`
	Hardware     HardwareConfig  `yaml:"Hardware"`
	Simulation   SimConfig       `yaml:"Simulation"`
	Telemetry    TelemetryConfig `yaml:"Telemetry"`
	Status       StatusConfig    `yaml:"Status"`
	Logging      LoggingConfig   `yaml:"Logging"`
}

// TimerConfig holds the pacing of the countdown and of the expiry sequence.
type TimerConfig struct {
	TickInterval  time.Duration `yaml:"TickInterval"`
	ExpiryBeeps   int           `yaml:"ExpiryBeeps"`
	ExpiryBeepOn  time.Duration `yaml:"ExpiryBeepOn"`
	ExpiryBeepOff time.Duration `yaml:"ExpiryBeepOff"`
	ExpiryHold    time.Duration `yaml:"ExpiryHold"`
}

type KeypadConfig struct {
	RowPins     []int         `yaml:"RowPins"`
	ColumnPins  []int         `yaml:"ColumnPins"`
	SettleDelay time.Duration `yaml:"SettleDelay"`
	QuietPeriod time.Duration `yaml:"QuietPeriod"`
}

// PresetConfig maps one preset button (identified by its bit on the
// preset port) to a fixed cooking time.
type PresetConfig struct {
	Bit     uint8  `yaml:"Bit"`
	Pin     int    `yaml:"Pin"`
	Key     string `yaml:"Key"`
	Name    string `yaml:"Name"`
	Minutes uint8  `yaml:"Minutes"`
	Seconds uint8  `yaml:"Seconds"`
}

type ServoConfig struct {
	Pin          int           `yaml:"Pin"`
	Period       time.Duration `yaml:"Period"`
	NominalDuty  uint16        `yaml:"NominalDuty"`
	SyncInterval time.Duration `yaml:"SyncInterval"`
}

type BuzzerConfig struct {
	Pin      int           `yaml:"Pin"`
	KeyPulse time.Duration `yaml:"KeyPulse"`
}

type SensorsConfig struct {
	Enabled            bool          `yaml:"Enabled"`
	AccelChannel       int           `yaml:"AccelChannel"`
	TempChannel        int           `yaml:"TempChannel"`
	WindowSize         int           `yaml:"WindowSize"`
	CalibrationSamples int           `yaml:"CalibrationSamples"`
	CalibrationDelay   time.Duration `yaml:"CalibrationDelay"`
	LoopDelay          time.Duration `yaml:"LoopDelay"`
	ZeroGOffset        float64       `yaml:"ZeroGOffset"`
	Sensitivity        float64       `yaml:"Sensitivity"`
	Gravity            float64       `yaml:"Gravity"`
	RadiusMeters       float64       `yaml:"RadiusMeters"`
	NetFloor           float64       `yaml:"NetFloor"`
	VRef               float64       `yaml:"VRef"`
	FullScale          float64       `yaml:"FullScale"`
	TempOffsetVolts    float64       `yaml:"TempOffsetVolts"`
	TempVoltsPerDegree float64       `yaml:"TempVoltsPerDegree"`
}

type HardwareConfig struct {
	ADC struct {
		// Source is either "spi" (MCP3008 on SPI0) or "serial"
		// (a microcontroller streaming "a0,a1" lines).
		Source       string `yaml:"Source"`
		SPIFrequency int    `yaml:"SPIFrequency"`
		SerialPort   string `yaml:"SerialPort"`
		BaudRate     int    `yaml:"BaudRate"`
	} `yaml:"ADC"`
	LCD struct {
		RS   int   `yaml:"RS"`
		E    int   `yaml:"E"`
		Data []int `yaml:"Data"`
	} `yaml:"LCD"`
	GPIOChip string `yaml:"GPIOChip"`
}

type SimConfig struct {
	KeyHold time.Duration `yaml:"KeyHold"`
	Sound   bool          `yaml:"Sound"`
	ToneHz  float64       `yaml:"ToneHz"`
}

type TelemetryConfig struct {
	Enabled      bool          `yaml:"Enabled"`
	Broker       string        `yaml:"Broker"`
	ClientID     string        `yaml:"ClientID"`
	TopicPrefix  string        `yaml:"TopicPrefix"`
	SensorPeriod time.Duration `yaml:"SensorPeriod"`
}

type StatusConfig struct {
	Enabled   bool    `yaml:"Enabled"`
	Listen    string  `yaml:"Listen"`
	RateLimit float64 `yaml:"RateLimit"`
	Burst     int     `yaml:"Burst"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

// Default returns a configuration carrying the timing and calibration
// constants of the appliance as built.
func Default() Config {
	return Config{
		Timer: TimerConfig{
			TickInterval:  time.Second,
			ExpiryBeeps:   4,
			ExpiryBeepOn:  500 * time.Millisecond,
			ExpiryBeepOff: 500 * time.Millisecond,
			ExpiryHold:    5 * time.Second,
		},
		Keypad: KeypadConfig{
			RowPins:     []int{5, 6, 13, 19},
			ColumnPins:  []int{17, 27, 22},
			SettleDelay: 10 * time.Millisecond,
			QuietPeriod: 200 * time.Millisecond,
		},
		Presets: []PresetConfig{
			{Bit: 0, Pin: 4, Key: "a", Name: "Quick Reheat", Minutes: 0, Seconds: 30},
			{Bit: 1, Pin: 23, Key: "b", Name: "Soup", Minutes: 1, Seconds: 0},
			{Bit: 4, Pin: 24, Key: "c", Name: "Noodles", Minutes: 1, Seconds: 30},
			{Bit: 5, Pin: 25, Key: "d", Name: "Pizza Pocket", Minutes: 2, Seconds: 0},
			{Bit: 6, Pin: 16, Key: "e", Name: "Popcorn", Minutes: 2, Seconds: 30},
			{Bit: 7, Pin: 20, Key: "f", Name: "Frozen Burrito", Minutes: 3, Seconds: 0},
		},
		Servo: ServoConfig{
			Pin:          18,
			Period:       20 * time.Millisecond,
			NominalDuty:  1500,
			SyncInterval: 10 * time.Millisecond,
		},
		Buzzer: BuzzerConfig{
			Pin:      12,
			KeyPulse: 150 * time.Millisecond,
		},
		Sensors: SensorsConfig{
			Enabled:            true,
			AccelChannel:       0,
			TempChannel:        1,
			WindowSize:         5,
			CalibrationSamples: 5,
			CalibrationDelay:   33 * time.Millisecond,
			LoopDelay:          time.Second,
			ZeroGOffset:        2615,
			Sensitivity:        68078.5,
			Gravity:            9.81,
			RadiusMeters:       3 * 0.0254,
			NetFloor:           0.1,
			VRef:               3.3,
			FullScale:          16384,
			TempOffsetVolts:    1.375,
			TempVoltsPerDegree: 0.0225,
		},
		Hardware: func() HardwareConfig {
			var h HardwareConfig
			h.ADC.Source = "spi"
			h.ADC.SPIFrequency = 1000000
			h.ADC.BaudRate = 115200
			h.LCD.RS = 7
			h.LCD.E = 8
			h.LCD.Data = []int{9, 10, 11, 26}
			h.GPIOChip = "gpiochip0"
			return h
		}(),
		Simulation: SimConfig{
			KeyHold: 80 * time.Millisecond,
			Sound:   false,
			ToneHz:  880,
		},
		Telemetry: TelemetryConfig{
			ClientID:     "gowave",
			TopicPrefix:  "gowave",
			SensorPeriod: 5 * time.Second,
		},
		Status: StatusConfig{
			Listen:    ":8080",
			RateLimit: 10,
			Burst:     5,
		},
		Logging: LoggingConfig{
			TUI: LogConfig{Level: "INFO", Format: "text"},
			HW:  LogConfig{Level: "INFO", Format: "text"},
		},
	}
}

// ReadConfig decodes cfile on top of Default() and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	conf := Default()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.ConfigFile = cfile

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

// Validate checks the configuration for consistency. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Timer.TickInterval <= 0 {
		errs = append(errs, errors.New("Timer.TickInterval must be positive"))
	}
	if c.Timer.ExpiryBeeps < 0 {
		errs = append(errs, errors.New("Timer.ExpiryBeeps must not be negative"))
	}
	if len(c.Keypad.RowPins) != 4 {
		errs = append(errs, fmt.Errorf("Keypad.RowPins must list 4 pins, got %d", len(c.Keypad.RowPins)))
	}
	if len(c.Keypad.ColumnPins) != 3 {
		errs = append(errs, fmt.Errorf("Keypad.ColumnPins must list 3 pins, got %d", len(c.Keypad.ColumnPins)))
	}
	if c.Keypad.SettleDelay < 0 || c.Keypad.QuietPeriod < 0 {
		errs = append(errs, errors.New("Keypad.SettleDelay and Keypad.QuietPeriod must not be negative"))
	}

	seenBits := make(map[uint8]bool, len(c.Presets))
	seenKeys := make(map[string]bool, len(c.Presets))
	for i, p := range c.Presets {
		if p.Bit > 7 {
			errs = append(errs, fmt.Errorf("Presets[%d].Bit must be between 0 and 7, got %d", i, p.Bit))
		}
		if seenBits[p.Bit] {
			errs = append(errs, fmt.Errorf("Presets[%d].Bit %d is used twice", i, p.Bit))
		}
		seenBits[p.Bit] = true
		if p.Key != "" {
			if seenKeys[p.Key] {
				errs = append(errs, fmt.Errorf("Presets[%d].Key %q is used twice", i, p.Key))
			}
			seenKeys[p.Key] = true
		}
		if p.Seconds >= 60 {
			errs = append(errs, fmt.Errorf("Presets[%d].Seconds must be below 60, got %d", i, p.Seconds))
		}
		if p.Minutes == 0 && p.Seconds == 0 {
			errs = append(errs, fmt.Errorf("Presets[%d] must not be zero length", i))
		}
	}

	if c.Servo.SyncInterval <= 0 {
		errs = append(errs, errors.New("Servo.SyncInterval must be positive"))
	} else if c.Servo.SyncInterval >= c.Timer.TickInterval {
		errs = append(errs, errors.New("Servo.SyncInterval must be shorter than Timer.TickInterval"))
	}
	if c.Servo.Period <= 0 {
		errs = append(errs, errors.New("Servo.Period must be positive"))
	} else if time.Duration(c.Servo.NominalDuty)*time.Microsecond >= c.Servo.Period {
		errs = append(errs, fmt.Errorf("Servo.NominalDuty %dus must fit into Servo.Period %s", c.Servo.NominalDuty, c.Servo.Period))
	}

	if c.Sensors.Enabled {
		if c.Sensors.WindowSize < 1 {
			errs = append(errs, errors.New("Sensors.WindowSize must be at least 1"))
		}
		if c.Sensors.CalibrationSamples < 1 {
			errs = append(errs, errors.New("Sensors.CalibrationSamples must be at least 1"))
		}
		if c.Sensors.Sensitivity == 0 || c.Sensors.RadiusMeters <= 0 || c.Sensors.FullScale <= 0 || c.Sensors.TempVoltsPerDegree == 0 {
			errs = append(errs, errors.New("Sensors calibration constants must be non-zero"))
		}
		if c.Sensors.LoopDelay <= 0 {
			errs = append(errs, errors.New("Sensors.LoopDelay must be positive"))
		}
	}

	switch c.Hardware.ADC.Source {
	case "spi":
	case "serial":
		if c.Hardware.ADC.SerialPort == "" {
			errs = append(errs, errors.New("Hardware.ADC.SerialPort is required for the serial ADC source"))
		}
	default:
		errs = append(errs, fmt.Errorf("Hardware.ADC.Source must be spi or serial, got %q", c.Hardware.ADC.Source))
	}
	if len(c.Hardware.LCD.Data) != 4 {
		errs = append(errs, fmt.Errorf("Hardware.LCD.Data must list 4 pins, got %d", len(c.Hardware.LCD.Data)))
	}

	if c.Telemetry.Enabled && c.Telemetry.Broker == "" {
		errs = append(errs, errors.New("Telemetry.Broker is required when telemetry is enabled"))
	}
	if c.Status.Enabled && c.Status.Listen == "" {
		errs = append(errs, errors.New("Status.Listen is required when the status server is enabled"))
	}

	return errors.Join(errs...)
}

// PresetByKey returns the preset bound to a simulation key.
func (c *Config) PresetByKey(key string) (PresetConfig, bool) {
	for _, p := range c.Presets {
		if p.Key == key {
			return p, true
		}
	}
	return PresetConfig{}, false
}

// LogFor returns the logging section for the selected platform.
func (c *Config) LogFor() LogConfig {
	if c.RealHW {
		return c.Logging.HW
	}
	return c.Logging.TUI
}
