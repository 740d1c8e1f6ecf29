// Package pipeline wires fetchers, the aggregator, the store client and the
// exporter into the capture and export runs driven from the command line.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "depthflow/config"
	"depthflow/internal/aggregate"
	"depthflow/internal/partition"
	"depthflow/logger"
	"depthflow/models"
	"depthflow/reader"
)

// SnapshotPusher is the slice of the store client the capture run needs.
type SnapshotPusher interface {
	Push(ctx context.Context, key partition.Key, rec models.StoredRecord) error
}

// CaptureRunner captures one aggregated snapshot per symbol and pushes each
// into its day partition. Symbols are processed by a bounded worker pool and
// failures stay isolated per symbol.
type CaptureRunner struct {
	config  *appconfig.Config
	fetcher reader.DepthFetcher
	store   SnapshotPusher
	now     func() time.Time
	log     *logger.Log
}

func NewCaptureRunner(cfg *appconfig.Config, fetcher reader.DepthFetcher, store SnapshotPusher) *CaptureRunner {
	return &CaptureRunner{
		config:  cfg,
		fetcher: fetcher,
		store:   store,
		now:     time.Now,
		log:     logger.GetLogger(),
	}
}

// Run captures every symbol once. The returned report has one entry per
// symbol; Run itself only fails when the context is cancelled before all
// symbols were attempted.
func (r *CaptureRunner) Run(ctx context.Context, specs []appconfig.SymbolSpec) (*models.Report, error) {
	report := &models.Report{RunID: uuid.New().String()}
	log := r.log.WithComponent("capture").WithFields(logger.Fields{
		"run_id":  report.RunID,
		"symbols": len(specs),
		"source":  r.fetcher.Source(),
	})
	log.Info("capture run started")

	workers := r.config.Capture.MaxWorkers
	if workers > len(specs) {
		workers = len(specs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan appconfig.SymbolSpec)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for spec := range jobs {
				r.captureOne(ctx, spec, report)
			}
		}()
	}

feed:
	for _, spec := range specs {
		select {
		case jobs <- spec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("capture run interrupted")
		return report, err
	}

	log.WithFields(logger.Fields{"failed": len(report.Failed())}).Info("capture run finished")
	return report, nil
}

func (r *CaptureRunner) captureOne(ctx context.Context, spec appconfig.SymbolSpec, report *models.Report) {
	log := r.log.WithComponent("capture").WithFields(logger.Fields{"symbol": spec.Symbol})

	fail := func(partitionClass string, err error) {
		log.WithError(err).Warn("symbol capture failed")
		report.Add(models.ReportEntry{
			Symbol:    spec.Symbol,
			Partition: partitionClass,
			Operation: "capture",
			Reason:    err.Error(),
		})
	}

	bids, asks, err := r.fetcher.Fetch(ctx, spec.Symbol)
	if err != nil {
		fail("", err)
		return
	}

	snap, err := aggregate.SnapshotAt(spec.Symbol, spec.Delta, bids, asks, r.now())
	if err != nil {
		fail("", err)
		return
	}

	key, err := partition.NewKey(spec.Symbol, time.Unix(snap.Created, 0))
	if err != nil {
		fail("", err)
		return
	}

	if err := r.store.Push(ctx, key, snap.Record(r.fetcher.Source())); err != nil {
		fail(key.Class(), err)
		return
	}

	log.WithFields(logger.Fields{
		"partition": key.Class(),
		"bids":      len(snap.Bids),
		"asks":      len(snap.Asks),
	}).Info("snapshot captured")
	report.Add(models.ReportEntry{
		Symbol:    spec.Symbol,
		Partition: key.Class(),
		Operation: "capture",
		OK:        true,
	})
}
