// Package metrics holds the Prometheus collectors shared by the engine, the
// uses analyzer and the watcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is one set of collectors registered on a single registry. Engines
// sharing a process should share a Metrics rather than register twice.
type Metrics struct {
	FilesIndexed     prometheus.Counter
	FilesSkipped     prometheus.Counter
	StubsExtracted   prometheus.Counter
	IndexErrors      prometheus.Counter
	Rebuilds         prometheus.Counter
	ResolveDuration  prometheus.Histogram
	ScopeCacheHits   prometheus.Counter
	ScopeCacheMisses prometheus.Counter
	WatcherEvents    prometheus.Counter
}

// New registers a fresh set of collectors on reg. A nil reg registers on a
// private registry, which keeps tests and embedded engines isolated.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		FilesIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_files_indexed_total",
			Help: "Total number of source files whose index contributions were rewritten.",
		}),
		FilesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_files_skipped_total",
			Help: "Total number of source files skipped because their content was unchanged.",
		}),
		StubsExtracted: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_stubs_extracted_total",
			Help: "Total number of named type stubs written to the name index.",
		}),
		IndexErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_index_errors_total",
			Help: "Total number of files that failed to index.",
		}),
		Rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_index_rebuilds_total",
			Help: "Total number of full index rebuilds caused by a stub format change.",
		}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pascope_resolve_duration_seconds",
			Help:    "Time spent resolving one identifier reference.",
			Buckets: prometheus.DefBuckets,
		}),
		ScopeCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_scope_cache_hits_total",
			Help: "Total number of uses scope lookups served from cache.",
		}),
		ScopeCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_scope_cache_misses_total",
			Help: "Total number of uses scope lookups that reparsed the file.",
		}),
		WatcherEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "pascope_watcher_events_total",
			Help: "Total number of file system events received by the watcher.",
		}),
	}
}
