package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pthm-cable/spark/config"
	"github.com/pthm-cable/spark/metrics"
	"github.com/pthm-cable/spark/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files (overrides config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, -1 = time-based)")
	maxTicks := flag.Int("max-ticks", -1, "Stop after N ticks (0 = unlimited, -1 = use config)")
	mode := flag.String("mode", "", "Execution mode: serial, concurrent or parallel (empty = use config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (overrides config)")
	restore := flag.String("restore", "", "Snapshot directory to resume from")
	verbose := flag.Bool("v", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *mode != "" {
		cfg.Space.Mode = *mode
	}
	if *outputDir == "" {
		*outputDir = cfg.Telemetry.OutputDir
	}
	if *snapshotDir == "" {
		*snapshotDir = cfg.Telemetry.SnapshotDir
	}
	if *metricsAddr == "" {
		*metricsAddr = cfg.Metrics.Addr
	}
	if *maxTicks < 0 {
		*maxTicks = cfg.Run.MaxTicks
	}
	rngSeed := *seed
	if rngSeed < 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := sim.Options{
		Seed:        rngSeed,
		LogStats:    *logStats,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
	}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if _, err := metrics.Serve(ctx, *metricsAddr, reg); err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		opts.Registerer = reg
	}

	var (
		s   *sim.Simulation
		err error
	)
	if *restore != "" {
		s, err = sim.Restore(cfg, opts, *restore)
	} else {
		s, err = sim.New(cfg, opts)
	}
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	slog.Info("starting headless simulation",
		"seed", s.Seed(),
		"mode", cfg.Space.Mode,
		"max_ticks", *maxTicks,
		"output_dir", *outputDir,
	)

	runErr := s.Run(ctx, *maxTicks)
	if err := s.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("simulation stopped", "tick", s.Tick(), "error", runErr)
		os.Exit(1)
	}
	if runErr != nil {
		slog.Info("interrupted", "tick", s.Tick())
	}
}
