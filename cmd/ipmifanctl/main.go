package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"codeberg.org/mutker/ipmifanctl/internal/config"
	"codeberg.org/mutker/ipmifanctl/internal/control"
	"codeberg.org/mutker/ipmifanctl/internal/curve"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"codeberg.org/mutker/ipmifanctl/internal/metrics"
	"codeberg.org/mutker/ipmifanctl/internal/pid"
	"codeberg.org/mutker/ipmifanctl/internal/sensor"
	"github.com/oklog/run"
	"github.com/spf13/pflag"
)

type app struct {
	cfg      *config.Config
	log      logger.Logger
	loop     *control.Loop
	actuator fan.Actuator
	journal  metrics.Collector
	nvml     *sensor.NVML
}

func main() {
	os.Exit(start())
}

func start() int {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.Error().Err(err).Str("pid_file", cfg.PIDFile).Msg("Failed to acquire PID file")
		return 1
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	a, err := newApp(cfg, logger.Default())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.cleanup()

	if err := a.run(); err != nil {
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrMainLoop, err)).Msg("Error in main loop")
		return 1
	}

	return 0
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	errFactory := errors.New()
	timeout := cfg.TimeoutDuration()

	a := &app{cfg: cfg, log: log}

	cpuTable, err := cfg.CPU.Table()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidThresholdConfig, err)
	}
	hddTable, err := cfg.HDD.Table()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidThresholdConfig, err)
	}
	policy, err := cfg.HDD.Policy()
	if err != nil {
		return nil, err
	}

	probes := []control.Probe{
		control.NewCPUProbe(
			sensor.NewLMSensors(cfg.CPU.SensorsPath, cfg.CPU.SensorLabel, timeout),
			cpuTable, cfg.CPU.IntervalDuration(), log.With("cpu"),
		),
		control.NewDriveProbe(
			sensor.NewSmartctl(cfg.HDD.SmartctlPath, timeout),
			cfg.HDD.Devices, hddTable, cfg.HDD.IntervalDuration(), log.With("hdd"),
			control.WithConcurrency(cfg.HDD.Concurrency),
			control.WithUnavailablePolicy(policy),
		),
	}

	if cfg.GPU.Enabled {
		gpuProbe, err := a.initGPU()
		if err != nil {
			return nil, err
		}
		probes = append(probes, gpuProbe)
	}

	if cfg.Monitor {
		log.Info().Msg("Monitor mode activated. Fan duty will not be changed.")
		a.actuator = fan.NewMonitor(log.With("fan"))
	} else {
		ipmi, err := fan.NewIPMI(cfg.Fan.Command, timeout, log.With("fan"))
		if err != nil {
			a.cleanup()
			return nil, errFactory.Wrap(errors.ErrInitFailed, err)
		}
		a.actuator = ipmi
	}

	a.journal, err = metrics.NewService(cfg.Journal.Metrics(), log.With("journal"))
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitJournal, err)
	}

	arbiter := control.NewArbiter(a.actuator, log.With("arbiter"),
		control.WithJournal(a.journal),
		control.WithMonitor(cfg.Monitor),
	)
	a.loop = control.NewLoop(arbiter, log.With("loop"), probes...)

	return a, nil
}

func (a *app) initGPU() (control.Probe, error) {
	errFactory := errors.New()

	table, err := a.cfg.GPU.Table()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidThresholdConfig, err)
	}

	a.nvml = sensor.NewNVML(a.cfg.TimeoutDuration())
	if err := a.nvml.Init(); err != nil {
		a.nvml = nil
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}
	a.log.Info().Int("gpus", a.nvml.Count()).Msg("NVML initialized")

	return control.NewGPUProbe(a.nvml, table, a.cfg.GPU.IntervalDuration(), a.log.With("gpu")), nil
}

func (a *app) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	g.Add(func() error {
		return a.loop.Run(ctx)
	}, func(error) {
		cancel()
	})

	err := g.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		a.log.Info().Str("signal", sig.Signal.String()).Msg("Received termination signal.")
		return nil
	}

	return err
}

func (a *app) cleanup() {
	if a.actuator != nil && a.cfg.Fan.HasExitDuty() && !a.cfg.Monitor {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.TimeoutDuration())
		if err := a.actuator.Apply(ctx, curve.Duty(a.cfg.Fan.ExitDuty)); err != nil {
			a.log.ErrorWithCode(errors.New().Wrap(errors.ErrResetFanDuty, err)).
				Int("duty", a.cfg.Fan.ExitDuty).
				Msg("Failed to apply exit fan duty")
		}
		cancel()
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.ErrorWithCode(errors.New().Wrap(errors.ErrCloseJournal, err)).Msg("Failed to close decision journal")
		}
	}

	if a.nvml != nil {
		if err := a.nvml.Shutdown(); err != nil {
			a.log.Error().Err(err).Msg("Failed to shut down NVML")
		}
	}

	a.log.Info().Msg("Exiting...")
}
