package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appconfig "depthflow/config"
	"depthflow/exporter"
	"depthflow/internal/partition"
	"depthflow/logger"
	"depthflow/models"
	"depthflow/pipeline"
	"depthflow/reader"
	"depthflow/store"
	"depthflow/sweeper"
)

const usage = `usage: depthflow <capture|export|sweep> [flags]

  capture   fetch, aggregate and push one snapshot per symbol
  export    write a day's partitions to parquet files
  sweep     delete partitions older than the retention window
`

// symbolsFlag collects repeated -symbols values, each a comma-separated list.
type symbolsFlag []string

func (s *symbolsFlag) String() string { return strings.Join(*s, ",") }

func (s *symbolsFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "config/config.yml", "Path to configuration file")
	var symbols symbolsFlag
	fs.Var(&symbols, "symbols", "Symbol overrides, e.g. BTCUSDT=100.0 (repeatable, comma-separated)")

	var interval time.Duration
	var day string
	var retention int
	switch command {
	case "capture":
		fs.DurationVar(&interval, "interval", 0, "Repeat the capture on this interval; 0 runs once")
	case "export":
		fs.StringVar(&day, "day", "yesterday", "UTC day to export: yesterday, today or YYYY-MM-DD")
	case "sweep":
		fs.IntVar(&retention, "retention", 0, "Retention window in days; 0 uses the configured value")
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	fs.Parse(os.Args[2:])

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if len(symbols) > 0 {
		cfg.Capture.Symbols = symbols
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Error("Invalid symbol overrides")
			os.Exit(1)
		}
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Depthflow.Name,
		"version": cfg.Depthflow.Version,
		"command": command,
	}).Info("starting depthflow")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.InitCloudWatch(cfg.Logging.MetricsRegion, "")
		logger.StartReport(ctx, log, 30*time.Second)
	}

	specs, err := appconfig.ParseSymbolSpecs(cfg.Capture.Symbols)
	if err != nil {
		log.WithError(err).Error("Invalid symbol configuration")
		os.Exit(1)
	}
	if len(specs) == 0 {
		log.Error("No symbols configured")
		os.Exit(1)
	}

	var report *models.Report
	switch command {
	case "capture":
		report, err = runCapture(ctx, cfg, specs, interval)
	case "export":
		report, err = runExport(ctx, cfg, specs, day)
	case "sweep":
		report, err = runSweep(ctx, cfg, specs, retention)
	}
	if err != nil {
		log.WithError(err).Error("Run failed")
		os.Exit(1)
	}

	failed := report.Failed()
	log.WithFields(logger.Fields{
		"run_id":  report.RunID,
		"entries": len(report.Entries),
		"failed":  len(failed),
	}).Info("depthflow finished")
	for _, e := range failed {
		log.WithFields(logger.Fields{
			"symbol":    e.Symbol,
			"partition": e.Partition,
			"operation": e.Operation,
			"reason":    e.Reason,
		}).Warn("operation failed")
	}
	if len(failed) == len(report.Entries) {
		os.Exit(1)
	}
}

func runCapture(ctx context.Context, cfg *appconfig.Config, specs []appconfig.SymbolSpec, interval time.Duration) (*models.Report, error) {
	fetcher, err := reader.NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewCaptureRunner(cfg, fetcher, store.NewClient(cfg))

	report, err := runner.Run(ctx, specs)
	if interval <= 0 || err != nil {
		return report, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Shutdown signal ends a periodic capture cleanly.
			return report, nil
		case <-ticker.C:
			if report, err = runner.Run(ctx, specs); err != nil {
				if ctx.Err() != nil {
					return report, nil
				}
				return report, err
			}
		}
	}
}

func runExport(ctx context.Context, cfg *appconfig.Config, specs []appconfig.SymbolSpec, day string) (*models.Report, error) {
	exportDay, err := parseDay(day)
	if err != nil {
		return nil, err
	}

	var archiver pipeline.FileArchiver
	if cfg.Export.S3.Enabled {
		a, err := exporter.NewArchiver(ctx, cfg)
		if err != nil {
			return nil, err
		}
		archiver = a
	}

	runner := pipeline.NewExportRunner(cfg, store.NewClient(cfg), exporter.NewExporter(cfg), archiver)
	return runner.Run(ctx, appconfig.Symbols(specs), exportDay)
}

func runSweep(ctx context.Context, cfg *appconfig.Config, specs []appconfig.SymbolSpec, retention int) (*models.Report, error) {
	if retention <= 0 {
		retention = cfg.Sweep.RetentionDays
	}
	return sweeper.NewSweeper(cfg).Sweep(ctx, appconfig.Symbols(specs), retention)
}

func parseDay(day string) (time.Time, error) {
	switch day {
	case "today":
		return partition.TodayUTC(), nil
	case "yesterday", "":
		return partition.YesterdayUTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -day %q: use yesterday, today or YYYY-MM-DD", day)
	}
	return t, nil
}
