// Package main — cmd/flightcored/main.go
//
// Flight computer firmware entrypoint.
//
// Startup sequence:
//  1. Parse CLI flags (urfave/cli).
//  2. Initialise structured logger (zap).
//  3. Open the flash-backed virtual filesystem.
//  4. Load config blob from flash, falling back to embedded defaults on
//     CRC mismatch (raises NON_USER_CFG).
//  5. Start Prometheus metrics server on --metrics-addr.
//  6. Build the system Context (bus, sensors, FSM, dispatcher, recorder,
//     telemetry).
//  7. Run all tasks.
//  8. Block on SIGINT/SIGTERM for graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/skywardavionics/flightcore/internal/config"
	"github.com/skywardavionics/flightcore/internal/errflags"
	"github.com/skywardavionics/flightcore/internal/flashfs"
	"github.com/skywardavionics/flightcore/internal/observability"
	"github.com/skywardavionics/flightcore/internal/system"
)

func main() {
	app := &cli.App{
		Name:  "flightcored",
		Usage: "sounding rocket flight computer firmware",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "flash-path", Value: "/var/lib/flightcore/flash.db", Usage: "path to the flash-backed virtual filesystem"},
			&cli.StringFlag{Name: "metrics-addr", Value: "127.0.0.1:9091", Usage: "bench-build Prometheus endpoint"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := buildLogger(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("flightcored starting", zap.String("flash_path", c.String("flash-path")))

	fs, err := flashfs.Open(c.String("flash-path"))
	if err != nil {
		log.Fatal("flash mount failed", zap.Error(err))
	}
	defer fs.Close() //nolint:errcheck

	cfg, nonUserCfg, err := loadConfig(fs, log)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := metrics.ServeMetrics(ctx, c.String("metrics-addr")); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	sysCtx, err := system.Build(log, metrics, cfg, fs, nil, nil, nil)
	if err != nil {
		log.Fatal("system build failed", zap.Error(err))
	}
	if nonUserCfg {
		sysCtx.Bus.Errors.Raise(errflags.NonUserCfg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	sysCtx.Run(ctx)
	return nil
}

// loadConfig loads the CRC32-tagged config blob from flash, falling back
// to embedded defaults on CRC mismatch (spec.md §4.10, §7). The bool result
// is true for that fallback; run raises NON_USER_CFG from it once the
// system Context (and its error word) exists.
func loadConfig(fs *flashfs.DB, log *zap.Logger) (*config.Registry, bool, error) {
	blob, ok := fs.GetBlob("/cats_config")
	if ok {
		reg, err := config.Load(blob, config.Fields())
		if err == nil {
			return reg, false, nil
		}
		log.Warn("config blob invalid, falling back to defaults", zap.Error(err), zap.String("flag", errflags.Names(errflags.NonUserCfg)[0]))
		reg, err = config.Defaults()
		return reg, true, err
	}
	reg, err := config.Defaults()
	return reg, false, err
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}
