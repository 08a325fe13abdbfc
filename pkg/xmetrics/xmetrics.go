package xmetrics

import (
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-metrics/prometheus"

	"github.com/olapsync/olap_syncer/pkg/xerror"
)

func InitGlobal(serviceName string) error {
	sink, err := prometheus.NewPrometheusSink()
	if err != nil {
		return xerror.Wrap(err, xerror.Normal, "init prometheus sink failed")
	}

	if _, err := metrics.NewGlobal(metrics.DefaultConfig(serviceName), sink); err != nil {
		return xerror.Wrap(err, xerror.Normal, "new global metrics failed")
	}

	return nil
}

func AddError(category xerror.ErrorCategory) {
	metrics.IncrCounter(ErrorMetrics().Category(category.Name()).Tag(), 1)
}

func RegisteredOperations(importKey string, operation string, count int) {
	metrics.IncrCounter(SyncMetrics(importKey).RegisterOperations(operation).Tag(), float32(count))
}

func QueueSize(importKey string, size int) {
	metrics.SetGauge(SyncMetrics(importKey).Queue().Tag(), float32(size))
}

func ClaimedOperations(importKey string, count int) {
	metrics.IncrCounter(SyncMetrics(importKey).Operations().Tag(), float32(count))
}

func ImportRows(importKey string, count int) {
	metrics.IncrCounter(SyncMetrics(importKey).ImportRows().Tag(), float32(count))
}

func MeasureStep(importKey string, step string, start time.Time) {
	metrics.MeasureSince(SyncMetrics(importKey).Step(step).Tag(), start)
}

func MeasureCycle(importKey string, start time.Time) {
	metrics.MeasureSince(SyncMetrics(importKey).Total().Tag(), start)
}

func LockTimeout(importKey string) {
	metrics.IncrCounter(LockMetrics(importKey).Timeout().Tag(), 1)
}

func LockHardRelease(importKey string) {
	metrics.IncrCounter(LockMetrics(importKey).HardRelease().Tag(), 1)
}
