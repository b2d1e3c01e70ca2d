// Package telemetry exposes the process's Prometheus metrics: operation
// counters/latencies for the memory manager and maintenance scheduler, plus
// a disk-usage gauge for each scope's storage directory (spec §10 ambient
// stack). Grounded on the teacher's metrics package (promauto counter/
// histogram vecs) and its gopsutil disk collector.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
)

var log = memlog.Named("telemetry")

// OperationsTotal counts every Manager/maintenance/migration operation by
// name and outcome (ok/error).
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "memory_operations_total",
		Help: "Memory API operations by name and outcome",
	},
	[]string{"operation", "outcome"},
)

// OperationLatencyHistogram records how long each operation took.
var OperationLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "memory_operation_latency_seconds",
		Help:    "Memory API operation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	},
	[]string{"operation"},
)

// ScopeItemCount reports how many items a scope's catalog currently holds.
var ScopeItemCount = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "memory_scope_item_count",
		Help: "Items currently cataloged per scope",
	},
	[]string{"scope"},
)

// CompactionsTotal counts scheduler-triggered and on-demand compactions.
var CompactionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "memory_compactions_total",
		Help: "Scope compactions by trigger (scheduled/manual) and outcome",
	},
	[]string{"trigger", "outcome"},
)

// Observe times fn under operation's histogram and increments
// OperationsTotal with the outcome fn's error implies.
func Observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	OperationLatencyHistogram.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	return err
}

// diskCollector reports free/used bytes for a fixed set of directories,
// resolved to their containing mount point at collection time so it stays
// accurate across remounts (spec §10: disk pressure is part of the ambient
// observability surface, independent of any domain metric).
type diskCollector struct {
	dirs map[string]string // label -> directory

	freeDesc  *prometheus.Desc
	usedDesc  *prometheus.Desc
	errorDesc *prometheus.Desc
}

// NewDiskCollector returns a prometheus.Collector reporting free/used bytes
// for each named directory (typically one per open scope's home).
func NewDiskCollector(dirs map[string]string) prometheus.Collector {
	return &diskCollector{
		dirs: dirs,
		freeDesc: prometheus.NewDesc("memory_scope_disk_free_bytes",
			"Free bytes on the filesystem backing a scope's storage directory.",
			[]string{"scope"}, nil),
		usedDesc: prometheus.NewDesc("memory_scope_disk_used_bytes",
			"Used bytes on the filesystem backing a scope's storage directory.",
			[]string{"scope"}, nil),
		errorDesc: prometheus.NewDesc("memory_scope_disk_collector_error",
			"Indicates an error occurred while collecting scope disk usage.",
			[]string{"scope"}, nil),
	}
}

func (c *diskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.freeDesc
	ch <- c.usedDesc
	ch <- c.errorDesc
}

func (c *diskCollector) Collect(ch chan<- prometheus.Metric) {
	for scope, dir := range c.dirs {
		usage, err := disk.Usage(dir)
		if err != nil {
			log.Warnw("disk usage collection failed", "scope", scope, "dir", dir, "err", err)
			ch <- prometheus.MustNewConstMetric(c.errorDesc, prometheus.GaugeValue, 1, scope)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.freeDesc, prometheus.GaugeValue, float64(usage.Free), scope)
		ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(usage.Used), scope)
	}
}

// RefreshScopeItemCounts sets ScopeItemCount from a scope->count map,
// typically collected once per maintenance scheduler tick.
func RefreshScopeItemCounts(ctx context.Context, counts map[string]int) {
	for scope, n := range counts {
		ScopeItemCount.WithLabelValues(scope).Set(float64(n))
	}
}
