package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	appconfig "depthflow/config"
	"depthflow/exporter"
	"depthflow/internal/partition"
	"depthflow/logger"
	"depthflow/models"
)

// PartitionLoader is the slice of the store client the export run needs.
type PartitionLoader interface {
	Load(ctx context.Context, key partition.Key) ([]models.StoredRecord, error)
}

// FileArchiver uploads a finished export. A nil archiver disables archiving.
type FileArchiver interface {
	Archive(ctx context.Context, key partition.Key, path string) error
}

// ExportRunner loads each symbol's day partition and writes it out as a
// parquet file, optionally archiving the result. Symbols are exported
// sequentially; a failure on one does not stop the rest.
type ExportRunner struct {
	config   *appconfig.Config
	store    PartitionLoader
	exporter *exporter.Exporter
	archiver FileArchiver
	log      *logger.Log
}

func NewExportRunner(cfg *appconfig.Config, store PartitionLoader, exp *exporter.Exporter, archiver FileArchiver) *ExportRunner {
	return &ExportRunner{
		config:   cfg,
		store:    store,
		exporter: exp,
		archiver: archiver,
		log:      logger.GetLogger(),
	}
}

// Run exports every symbol's partition for the given UTC day.
func (r *ExportRunner) Run(ctx context.Context, symbols []string, day time.Time) (*models.Report, error) {
	report := &models.Report{RunID: uuid.New().String()}
	log := r.log.WithComponent("export").WithFields(logger.Fields{
		"run_id":  report.RunID,
		"symbols": len(symbols),
		"day":     partition.DayUTC(day).Format("2006-01-02"),
	})
	log.Info("export run started")

	if err := os.MkdirAll(r.config.Export.OutputDir, 0o755); err != nil {
		return report, err
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("export run interrupted")
			return report, err
		}
		r.exportOne(ctx, symbol, day, report)
	}

	log.WithFields(logger.Fields{"failed": len(report.Failed())}).Info("export run finished")
	return report, nil
}

func (r *ExportRunner) exportOne(ctx context.Context, symbol string, day time.Time, report *models.Report) {
	log := r.log.WithComponent("export").WithFields(logger.Fields{"symbol": symbol})

	fail := func(partitionClass, op string, err error) {
		log.WithError(err).Warn("symbol export failed")
		report.Add(models.ReportEntry{
			Symbol:    symbol,
			Partition: partitionClass,
			Operation: op,
			Reason:    err.Error(),
		})
	}

	key, err := partition.NewKey(symbol, day)
	if err != nil {
		fail("", "export", err)
		return
	}

	records, err := r.store.Load(ctx, key)
	if err != nil {
		fail(key.Class(), "export", err)
		return
	}

	outputPath := r.exporter.OutputPath(key)
	if err := r.exporter.Export(key, records, outputPath); err != nil {
		fail(key.Class(), "export", err)
		return
	}

	log.WithFields(logger.Fields{
		"partition": key.Class(),
		"records":   len(records),
		"output":    outputPath,
	}).Info("partition exported")
	report.Add(models.ReportEntry{
		Symbol:    symbol,
		Partition: key.Class(),
		Operation: "export",
		OK:        true,
	})

	if r.archiver == nil {
		return
	}
	if err := r.archiver.Archive(ctx, key, outputPath); err != nil {
		fail(key.Class(), "archive", err)
		return
	}
	report.Add(models.ReportEntry{
		Symbol:    symbol,
		Partition: key.Class(),
		Operation: "archive",
		OK:        true,
	})
}
