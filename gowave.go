package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lautenbacher.net/gowave/actuator"
	"lautenbacher.net/gowave/clock"
	c "lautenbacher.net/gowave/config"
	"lautenbacher.net/gowave/controller"
	"lautenbacher.net/gowave/countdown"
	"lautenbacher.net/gowave/display"
	"lautenbacher.net/gowave/input"
	"lautenbacher.net/gowave/logging"
	pl "lautenbacher.net/gowave/platform"
	"lautenbacher.net/gowave/sensor"
	"lautenbacher.net/gowave/status"
	"lautenbacher.net/gowave/telemetry"
)

// Bursts of editor writes to the config file collapse into one reload.
const CONFIG_SETTLE = 500 * time.Millisecond

type App struct {
	ossignal    chan os.Signal
	clock       clock.Clock
	newPlatform func(conf *c.Config, ossignal chan os.Signal) (pl.Platform, error)
	newPublish  func(conf c.TelemetryConfig) (telemetry.Publisher, error)

	platform   pl.Platform
	machine    *countdown.Machine
	buzzer     *actuator.Buzzer
	publisher  telemetry.Publisher
	cancel     context.CancelFunc
	shutdownWg sync.WaitGroup
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal:    ossignal,
		clock:       clock.New(),
		newPlatform: pl.New,
		newPublish: func(conf c.TelemetryConfig) (telemetry.Publisher, error) {
			return telemetry.NewMQTTPublisher(conf)
		},
	}
}

func main() {
	realp := flag.Bool("real", false, "Set to true if program runs on real hardware")
	sensorViewer := flag.Bool("show-sensors", false, "Show sensor history on the console (real hardware only)")
	cfile := flag.String("config", c.CONFILE, "Config file to use")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		err := c.Watch(context.Background(), *cfile, CONFIG_SETTLE, func() {
			select {
			case ossignal <- syscall.SIGHUP:
			default:
			}
		})
		if err != nil {
			slog.Warn("Config file will not be watched", "error", err)
		}
	}()

	app := NewApp(ossignal)
	for {
		conf, err := c.ReadConfig(*cfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read config %s: %v\n", *cfile, err)
			os.Exit(1)
		}
		conf.RealHW = *realp
		conf.SensorViewer = *sensorViewer

		logOpts := conf.LogFor()
		if err := logging.Init(logging.Options{
			Level:  logOpts.Level,
			Format: logOpts.Format,
			File:   logOpts.File,
			Hold:   !conf.RealHW,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
			os.Exit(1)
		}

		if err := app.initialise(conf); err != nil {
			slog.Error("Failed to start", "error", err)
			app.shutdown()
			logging.Close()
			os.Exit(1)
		}

		sig := <-ossignal
		app.shutdown()
		if sig != syscall.SIGHUP {
			slog.Info("Exiting", "signal", sig)
			logging.Close()
			os.Exit(0)
		}
		slog.Info("Reloading config", "file", *cfile)
	}
}

// initialise brings up the platform and wires every component for one
// run. It returns once everything is started.
func (a *App) initialise(conf *c.Config) error {
	platform, err := a.newPlatform(conf, a.ossignal)
	if err != nil {
		return err
	}
	a.platform = platform
	if err := platform.Start(); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	<-platform.Ready()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.machine = countdown.NewMachine(conf.Servo.NominalDuty)
	a.buzzer = actuator.NewBuzzer(platform.Buzzer(), a.clock, ctx.Done())
	nominal := conf.Servo.NominalDuty
	command := func(st countdown.State) actuator.Command {
		return actuator.CommandFor(st.Mode, nominal, a.buzzer.Active())
	}

	source := input.NewSource(platform.Keypad(), platform.PresetPort(),
		input.NewPresetBank(input.PresetsFromConfig(conf.Presets)),
		a.machine, a.buzzer, a.clock, input.SourceConfig{
			SettleDelay: conf.Keypad.SettleDelay,
			QuietPeriod: conf.Keypad.QuietPeriod,
			KeyPulse:    conf.Buzzer.KeyPulse,
		})
	a.goRun(func() { source.Run(ctx, platform.Interrupts()) })

	syncer := actuator.NewSynchronizer(platform.Servo(), a.machine, a.clock, conf.Servo.SyncInterval)
	a.goRun(func() { syncer.Run(ctx) })

	ctrl := controller.New(a.machine, display.NewLCD(platform.TimerDisplay()), a.buzzer, a.clock, conf.Timer)
	a.goRun(func() { ctrl.Run(ctx) })

	observers := []func(sensor.Reading){platform.OnReading}

	if conf.Telemetry.Enabled {
		pub, err := a.newPublish(conf.Telemetry)
		if err != nil {
			// The appliance keeps working without a broker
			slog.Warn("Telemetry disabled", "broker", conf.Telemetry.Broker, "error", err)
		} else {
			a.publisher = pub
			reporter := telemetry.NewReporter(pub, conf.Telemetry.TopicPrefix, conf.Telemetry.SensorPeriod, command, time.Now)
			states := a.machine.Subscribe()
			a.goRun(func() { reporter.Run(ctx, states) })
			observers = append(observers, reporter.OnReading)
		}
	}

	if conf.Status.Enabled {
		tracker := status.NewTracker(command)
		states := a.machine.Subscribe()
		a.goRun(func() { tracker.Run(ctx, states) })
		a.goRun(func() {
			if err := status.Serve(ctx, tracker, conf); err != nil {
				slog.Error("Status server failed", "listen", conf.Status.Listen, "error", err)
			}
		})
		observers = append(observers, tracker.OnReading)
	}

	if conf.Sensors.Enabled {
		loop := sensor.NewLoop(platform.Analog(), platform.SensorDisplay(), a.clock, conf.Sensors, observers...)
		a.goRun(func() { loop.Run(ctx) })
	}

	slog.Info("Microwave ready", "real", conf.RealHW, "presets", len(conf.Presets))
	return nil
}

func (a *App) goRun(f func()) {
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		f()
	}()
}

// shutdown stops all components, then the platform. Safe to call when
// initialise failed halfway.
func (a *App) shutdown() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.shutdownWg.Wait()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Warn("Failed to close telemetry", "error", err)
		}
		a.publisher = nil
	}
	if a.platform != nil {
		a.platform.Stop()
		a.platform = nil
	}
}
