// wattd is the power telemetry rollup and retention daemon.
//
// It consumes the append-only stream of raw meter readings, downsamples
// them into minute and hourly aggregates, backfills windows missed during
// downtime, and enforces tiered retention.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/homewatt/wattd/config"
	"github.com/homewatt/wattd/internal/logging"
	"github.com/homewatt/wattd/internal/retention"
	"github.com/homewatt/wattd/internal/rollup"
	"github.com/homewatt/wattd/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dbPath := flag.String("db", "", "database path (overrides config)")
	disabled := flag.Bool("disabled", false, "do not register any scheduled task")
	cleanupNow := flag.Bool("cleanup-now", false, "run one retention pass, print counts, and exit")
	jsonLogs := flag.Bool("json-logs", false, "JSON log output (overrides config)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}
	if *disabled {
		cfg.Telemetry.Enabled = false
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON || *jsonLogs)
	log := logging.Component("main")
	log.Info("wattd starting", "version", Version, "db", cfg.DB.Path)

	// Open the three-tier store
	storeCfg := store.DefaultConfig()
	storeCfg.Path = cfg.DB.Path

	st, err := store.New(storeCfg)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Retention enforcer (+ optional parquet archive of expiring raw rows)
	var archiver *retention.Archiver
	if cfg.Telemetry.Features.Archive.Enabled {
		archiver = retention.NewArchiver(retention.ArchiveConfig{
			Dir:         cfg.Telemetry.Features.Archive.Dir,
			Compression: cfg.Telemetry.Features.Archive.Compression,
		})
	}
	enforcer := retention.New(st, retention.Config{
		RawHorizon:    cfg.Telemetry.Retention.Raw,
		MinuteHorizon: cfg.Telemetry.Retention.Minute,
	}, archiver)

	// Manual operational entry point: one idempotent pass, then exit.
	if *cleanupNow {
		result := enforcer.RunNow(context.Background())
		fmt.Printf("raw rows deleted: %d\n", result.RawDeleted)
		fmt.Printf("minute rows deleted: %d\n", result.MinuteDeleted)
		if result.RawArchived > 0 {
			fmt.Printf("raw rows archived: %d (%s)\n", result.RawArchived, result.ArchivePath)
		}
		if len(result.Errors) > 0 {
			os.Exit(1)
		}
		return
	}

	// Aggregators share the injected store handle
	minute := rollup.NewMinuteAggregator(st)
	if cfg.Telemetry.Features.Percentile.Enabled {
		minute.EnablePercentile(cfg.Telemetry.Features.Percentile.Accuracy)
	}
	hourly := rollup.NewHourlyAggregator(st)
	catchup := rollup.NewCatchUpCoordinator(st, minute, hourly)

	svc := rollup.NewService(rollup.ServiceConfig{
		Enabled:       cfg.Telemetry.Enabled,
		CatchUpDelay:  cfg.Telemetry.CatchUpDelay,
		RetentionHour: cfg.Telemetry.Retention.DailyHour,
	}, minute, hourly, catchup, enforcer)
	svc.Start()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("wattd shutting down")
	svc.Stop()
}
