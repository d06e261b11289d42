// Command freebudsctl connects to a pair of FreeBuds-class earbuds over
// Bluetooth SPP and exposes their state through an interactive shell.
//
// Usage:
//
//	freebudsctl [flags]
//
// Flags:
//
//	-address string    Bluetooth MAC address of the paired device
//	-config string     Configuration file path (YAML)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-trace string      Write a CBOR protocol trace to this file
//	-dump string       Print a captured trace file and exit
//
// Examples:
//
//	# Connect to a paired device
//	freebudsctl -address AA:BB:CC:DD:EE:FF
//
//	# Connect with a config file and capture a protocol trace
//	freebudsctl -config ~/.config/freebudsctl.yaml -trace /tmp/trace.cbor
//
//	# Replay a captured trace offline
//	freebudsctl -dump /tmp/trace.cbor
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openfreebuds/freebuds-go/cmd/freebudsctl/interactive"
	"github.com/openfreebuds/freebuds-go/pkg/config"
	"github.com/openfreebuds/freebuds-go/pkg/driver"
	"github.com/openfreebuds/freebuds-go/pkg/log"
	"github.com/openfreebuds/freebuds-go/pkg/transport"
)

var (
	flagAddress  = flag.String("address", "", "Bluetooth MAC address of the paired device")
	flagConfig   = flag.String("config", "", "Configuration file path (YAML)")
	flagLogLevel = flag.String("log-level", "", "Log level: debug, info, warn, error")
	flagTrace    = flag.String("trace", "", "Write a CBOR protocol trace to this file")
	flagDump     = flag.String("dump", "", "Print a captured trace file and exit")
)

func main() {
	flag.Parse()

	if *flagDump != "" {
		if err := runDump(*flagDump, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Device.Address == "" {
		return fmt.Errorf("no device address given (use -address or the config file)")
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	protoLogger, closeTrace, err := buildProtocolLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTrace()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting", "address", cfg.Device.Address)
	t, err := transport.Dial(ctx, cfg.Device.Address, protoLogger)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Device.Address, err)
	}

	drv, err := driver.New(t, driver.Config{
		DualEarbud:            cfg.Device.DualEarbud,
		PeriodicBatteryUpdate: cfg.Driver.PeriodicBatteryUpdate,
		BatteryUpdateInterval: cfg.GetBatteryUpdateInterval(),
		RequestTimeout:        cfg.GetRequestTimeout(),
		StopTimeout:           cfg.GetStopTimeout(),
		EventQueueLen:         cfg.Events.QueueLen,
		Logger:                logger,
		ProtocolLogger:        protoLogger,
	})
	if err != nil {
		return err
	}

	if err := drv.Start(ctx); err != nil {
		_ = t.Close()
		return fmt.Errorf("start driver: %w", err)
	}
	logger.Info("driver started", "state", drv.State())

	shell, err := interactive.New(drv)
	if err != nil {
		_ = drv.Stop(context.Background())
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	shell.Run(runCtx, cancel)

	logger.Info("shutting down")
	if err := drv.Stop(context.Background()); err != nil {
		logger.Warn("driver stop", "error", err)
	}
	return nil
}

// loadConfig merges the defaults, the optional config file and the
// command-line flags, flags winning.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *flagAddress != "" {
		cfg.Device.Address = *flagAddress
	}
	if *flagLogLevel != "" {
		cfg.Logging.Level = *flagLogLevel
	}
	if *flagTrace != "" {
		cfg.Trace.File = *flagTrace
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildProtocolLogger assembles the protocol event capture chain: an
// optional CBOR trace file plus an optional slog mirror.
func buildProtocolLogger(cfg *config.Config, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeTrace := func() {}

	if cfg.Trace.File != "" {
		fl, err := log.NewFileLogger(cfg.Trace.File)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		loggers = append(loggers, fl)
		closeTrace = func() { _ = fl.Close() }
	}
	if cfg.Trace.Console {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	if len(loggers) == 0 {
		return log.NoopLogger{}, closeTrace, nil
	}
	return log.NewMultiLogger(loggers...), closeTrace, nil
}
