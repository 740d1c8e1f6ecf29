package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsCapture int64
	errorsExport  int64
	errorsSweep   int64
	warnsCapture  int64
	warnsExport   int64
	warnsSweep    int64
	storePushes   int64
	storeLoads    int64
	storeDeletes  int64
	exportRows    int64
)

func recordWarn(component string) {
	switch {
	case strings.Contains(component, "capture"):
		atomic.AddInt64(&warnsCapture, 1)
	case strings.Contains(component, "export"):
		atomic.AddInt64(&warnsExport, 1)
	case strings.Contains(component, "sweep"):
		atomic.AddInt64(&warnsSweep, 1)
	}
}

func recordError(component string) {
	switch {
	case strings.Contains(component, "capture"):
		atomic.AddInt64(&errorsCapture, 1)
	case strings.Contains(component, "export"):
		atomic.AddInt64(&errorsExport, 1)
	case strings.Contains(component, "sweep"):
		atomic.AddInt64(&errorsSweep, 1)
	}
}

// IncrementStorePush records one completed push to the partition store.
func IncrementStorePush() { atomic.AddInt64(&storePushes, 1) }

// IncrementStoreLoad records one completed partition load.
func IncrementStoreLoad() { atomic.AddInt64(&storeLoads, 1) }

// IncrementStoreDelete records one completed partition delete.
func IncrementStoreDelete() { atomic.AddInt64(&storeDeletes, 1) }

// AddExportRows records how many columnar rows an export produced.
func AddExportRows(n int) { atomic.AddInt64(&exportRows, int64(n)) }

// StartReport begins periodic logging of runtime and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors_capture": atomic.LoadInt64(&errorsCapture),
		"errors_export":  atomic.LoadInt64(&errorsExport),
		"errors_sweep":   atomic.LoadInt64(&errorsSweep),
		"warns_capture":  atomic.LoadInt64(&warnsCapture),
		"warns_export":   atomic.LoadInt64(&warnsExport),
		"warns_sweep":    atomic.LoadInt64(&warnsSweep),
		"store_pushes":   atomic.LoadInt64(&storePushes),
		"store_loads":    atomic.LoadInt64(&storeLoads),
		"store_deletes":  atomic.LoadInt64(&storeDeletes),
		"export_rows":    atomic.LoadInt64(&exportRows),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memStats.Used) / 1024 / 1024,
		"disk_mb":        int64(diskStats.Used) / 1024 / 1024,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsCapture"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_capture"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsExport"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_export"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsSweep"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_sweep"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StorePushes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["store_pushes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StoreLoads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["store_loads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StoreDeletes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["store_deletes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ExportRows"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["export_rows"].(int64)))},
	)

	publishMetrics(ctx, data)
}
