package pool

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level counters, grounded on java/metrics.go's
// promauto.NewCounterVec pattern: package-level vars registered against
// the default registry at import time, namespace "repomd", subsystem
// "pool" (SPEC_FULL.md §4.1's "domain expansion" pool metrics). A
// sync/atomic counter shadows each Prometheus counter so [Metrics] can
// read a value back directly, the way pkg/poolstats/collector.go's own
// callers read its plain fields, rather than reaching for
// prometheus/client_golang/prometheus/testutil (a test-only helper) from
// production code.
var (
	tasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repomd",
		Subsystem: "pool",
		Name:      "tasks_submitted_total",
		Help:      "Total number of package tasks submitted to the dumper pool.",
	})
	tasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repomd",
		Subsystem: "pool",
		Name:      "tasks_completed_total",
		Help:      "Total number of package tasks that finished (successfully or not).",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repomd",
		Subsystem: "pool",
		Name:      "cache_hits_total",
		Help:      "Total number of packages reused from old metadata without reparsing.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repomd",
		Subsystem: "pool",
		Name:      "cache_misses_total",
		Help:      "Total number of packages that required a fresh header parse.",
	})
	taskErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repomd",
		Subsystem: "pool",
		Name:      "task_errors_total",
		Help:      "Total number of package tasks dropped due to an error.",
	})
)

var (
	tasksSubmittedCount atomic.Int64
	tasksCompletedCount atomic.Int64
	cacheHitsCount      atomic.Int64
	cacheMissesCount    atomic.Int64
	taskErrorsCount     atomic.Int64
)

// Metrics exposes read access to the pool's running counters, for the
// CLI's final summary line (cmd/createrepo/run.go).
type Metrics struct{}

func (Metrics) TasksSubmitted() int64 { return tasksSubmittedCount.Load() }
func (Metrics) TasksCompleted() int64 { return tasksCompletedCount.Load() }
func (Metrics) CacheHits() int64      { return cacheHitsCount.Load() }
func (Metrics) CacheMisses() int64    { return cacheMissesCount.Load() }
func (Metrics) TaskErrors() int64     { return taskErrorsCount.Load() }

func recordSubmit() {
	tasksSubmitted.Inc()
	tasksSubmittedCount.Add(1)
}

func recordComplete() {
	tasksCompleted.Inc()
	tasksCompletedCount.Add(1)
}

func recordCacheHit() {
	cacheHits.Inc()
	cacheHitsCount.Add(1)
}

func recordCacheMiss() {
	cacheMisses.Inc()
	cacheMissesCount.Add(1)
}

func recordTaskError() {
	taskErrors.Inc()
	taskErrorsCount.Add(1)
}
