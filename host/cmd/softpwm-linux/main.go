// Command softpwm-linux runs the soft-PWM scheduler against Linux GPIO lines
// described by a YAML file.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"softpwm/core"
	"softpwm/host/config"
	"softpwm/host/gpio"
	"softpwm/host/remote"
)

func main() {
	var (
		configPath string
		dryRun     bool
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "./softpwm.yaml", "Path to YAML config")
	flag.BoolVar(&dryRun, "dry-run", false, "Log pin edges instead of driving GPIO")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("config load failed", "path", configPath, "err", err)
		os.Exit(1)
	}

	var driver gpio.Driver
	if dryRun {
		driver = gpio.NewLogDriver(logger)
	} else {
		driver, err = gpio.Open(cfg)
		if err != nil {
			logger.Error("gpio open failed", "backend", cfg.Backend, "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("softpwm-linux starting",
		"backend", cfg.Backend,
		"frequency", cfg.Frequency,
		"channels", len(cfg.Channels),
		"dry_run", dryRun)

	var updates <-chan remote.DutyUpdate
	if cfg.MQTT != nil {
		sub := remote.NewSubscriber(*cfg.MQTT, logger)
		updates = sub.Updates()
		go sub.Run(ctx)
	}

	s := run(ctx, cfg, driver, gpio.MonotonicMicros, updates, logger)

	if err := driver.Close(); err != nil {
		logger.Error("gpio close failed", "err", err)
	}
	logger.Info("softpwm-linux stopped", "io_errors", s.IOErrors())
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// run assigns the configured channels and calls Update until ctx is done,
// then drives every channel low. Duty changes arriving on updates are
// applied between Update calls; a nil channel disables them.
func run(ctx context.Context, cfg config.Config, driver core.GPIODriver, clock core.Clock,
	updates <-chan remote.DutyUpdate, logger *slog.Logger) *core.SoftPWM {
	s := core.NewSoftPWM(driver, clock)
	s.Initialize(cfg.Frequency)
	for _, ch := range cfg.Channels {
		s.SetDuty(core.GPIOPin(ch.Pin), uint8(ch.Duty))
		logger.Debug("channel", "pin", ch.Pin, "duty", ch.Duty,
			"on_us", core.TurnOffMicros(s.Period(), uint8(ch.Duty)))
	}
	logger.Info("scheduler ready", "period_us", s.Period(), "active", s.ActiveCount())

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return s
		case upd := <-updates:
			s.SetDuty(upd.Pin, upd.Duty)
			logger.Debug("duty update", "pin", upd.Pin, "duty", upd.Duty, "active", s.ActiveCount())
		default:
		}
		s.Update()
		time.Sleep(cfg.PollInterval)
	}
}
