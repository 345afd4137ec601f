package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/config"
	"github.com/HannahMarsh/onion-routing-wsn/internal/telemetry"
	"github.com/HannahMarsh/onion-routing-wsn/pkg/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "Log level, overrides log_level from the configuration")

	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0]); err != nil {
			slog.Error("failed to print usage", "err", err)
		}
		flag.PrintDefaults()
	}

	flag.Parse()

	logger.SetUpLogrusAndSlog("info")

	// Automatically adjust the GOMAXPROCS setting based on the number of available CPU cores.
	if _, err := maxprocs.Set(); err != nil {
		slog.Error("failed set max procs", "err", err)
		os.Exit(1)
	}

	path, err := config.InitGlobal(*configPath)
	if err != nil {
		slog.Error("failed to init config", "path", path, "err", err)
		os.Exit(1)
	}
	cfg := config.GlobalConfig
	if *logLevel == "" {
		*logLevel = cfg.LogLevel
	}
	logger.SetUpLogrusAndSlog(*logLevel)

	runID := uuid.New()
	startedAt := time.Now()
	outputDir := filepath.Join(cfg.Output.Dir, cfg.Name())

	slog.Info("⚡ init simulation", "config", path, "name", cfg.Name(), "run_id", runID, "output", outputDir)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case v := <-quit:
			slog.Info("signal.Notify", "signal", v)
			config.GlobalCancel()
		case <-config.GlobalCtx.Done():
		}
	}()

	a, cleanup, err := initializeApp(config.GlobalCtx, cfg, runID)
	if err != nil {
		slog.Error("failed to build simulation", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.Output.PrometheusPort > 0 {
		shutdown := telemetry.ServeMetrics(cfg.Output.PrometheusPort, telemetry.StatusHandler(a.Recorder), telemetry.CollectorIds()...)
		defer shutdown()
		if err = config.InitPrometheusConfig(filepath.Join(cfg.Output.Dir, "prometheus.yml"), "localhost", cfg.Output.PrometheusPort); err != nil {
			slog.Error("failed to write prometheus config", "err", err)
		}
	}

	summary, err := a.Simulation.Run(config.GlobalCtx)
	if err != nil {
		slog.Error("simulation interrupted", "err", err)
	}

	if err := a.Recorder.WriteCSV(outputDir); err != nil {
		slog.Error("failed to write results", "err", err)
	}
	if _, err := config.WriteDescription(outputDir, cfg.Describe(runID.String(), startedAt)); err != nil {
		slog.Error("failed to write description", "err", err)
	}

	slog.Info("🌏 simulation done",
		"onions", summary.Onions,
		"completed", summary.Completed,
		"aborted", summary.Aborted,
		"skipped", summary.Skipped,
		"ghosts", summary.Ghosts,
		"failures", summary.Failures,
		"aggregate_mismatches", summary.AggregateMismatches,
		"simulated_time", summary.SimulatedTime,
		"segments", summary.Network.Segments,
		"dropped_segments", summary.Network.Dropped,
		"wall_time", time.Since(startedAt))

	if cfg.Output.PrometheusPort > 0 && cfg.Output.HoldMetricsS > 0 {
		slog.Info("holding metrics endpoint", "seconds", cfg.Output.HoldMetricsS)
		select {
		case <-time.After(time.Duration(cfg.Output.HoldMetricsS) * time.Second):
		case <-config.GlobalCtx.Done():
		}
	}
	config.GlobalCancel()
}
