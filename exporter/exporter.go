// Package exporter flattens loaded snapshots into a fixed-schema, snappy
// compressed parquet file, one file per (symbol, day).
package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "depthflow/config"
	"depthflow/internal/errs"
	"depthflow/internal/partition"
	"depthflow/logger"
	"depthflow/models"
)

// ParquetRow is the columnar schema, one row per (record, price level).
// The four columns are the external contract; changing them requires a
// schema version bump.
type ParquetRow struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
	Volume    float64 `parquet:"name=volume, type=DOUBLE"`
	Source    string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// createFile is swapped out by tests to inject write failures.
var createFile = createLocalFile

type Exporter struct {
	config *appconfig.Config
	log    *logger.Log
}

func NewExporter(cfg *appconfig.Config) *Exporter {
	return &Exporter{
		config: cfg,
		log:    logger.GetLogger(),
	}
}

// FileName returns the deterministic output name for a partition,
// e.g. btcusdt-20240105.parquet.
func FileName(key partition.Key) string {
	return fmt.Sprintf("%s-%s.parquet", strings.ToLower(key.Symbol), key.Day.UTC().Format("20060102"))
}

// Flatten turns stored records into columnar rows: for each record one row
// per bid level then one per ask level, preserving each side's stored order.
func Flatten(records []models.StoredRecord) []ParquetRow {
	var rows []ParquetRow
	for _, rec := range records {
		for _, level := range rec.Bids {
			rows = append(rows, ParquetRow{
				Timestamp: rec.Created,
				Price:     level.Price,
				Volume:    level.Volume,
				Source:    rec.Source,
			})
		}
		for _, level := range rec.Asks {
			rows = append(rows, ParquetRow{
				Timestamp: rec.Created,
				Price:     level.Price,
				Volume:    level.Volume,
				Source:    rec.Source,
			})
		}
	}
	return rows
}

// Export writes the records' flattened rows to outputPath as a single
// row group. The file is written to a temporary path and renamed into
// place on success; a crash or write failure never leaves a partial file
// visible under the final name.
func (e *Exporter) Export(key partition.Key, records []models.StoredRecord, outputPath string) error {
	log := e.log.WithComponent("exporter").WithFields(logger.Fields{
		"partition": key.Class(),
		"output":    outputPath,
		"records":   len(records),
	})

	rows := Flatten(records)
	tmpPath := fmt.Sprintf("%s.tmp-%s", outputPath, uuid.New().String())

	fw, err := createFile(tmpPath)
	if err != nil {
		return &errs.IOError{Path: tmpPath, Err: err}
	}

	if err := e.writeRows(fw, rows); err != nil {
		fw.Close()
		os.Remove(tmpPath)
		return &errs.IOError{Path: tmpPath, Err: err}
	}

	if err := fw.Close(); err != nil {
		os.Remove(tmpPath)
		return &errs.IOError{Path: tmpPath, Err: err}
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return &errs.IOError{Path: outputPath, Err: err}
	}

	logger.AddExportRows(len(rows))
	log.WithFields(logger.Fields{"rows": len(rows)}).Info("partition exported")
	return nil
}

func (e *Exporter) writeRows(fw source.ParquetFile, rows []ParquetRow) error {
	pw, err := writer.NewParquetWriter(fw, new(ParquetRow), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}

	switch e.config.Export.Compression {
	case "snappy", "":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return fmt.Errorf("write parquet row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}

// OutputPath joins the configured output directory with the partition's
// deterministic file name.
func (e *Exporter) OutputPath(key partition.Key) string {
	return filepath.Join(e.config.Export.OutputDir, FileName(key))
}
