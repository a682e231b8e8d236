// Package metrics holds the prometheus collectors of the download engine
// and the HTTP listener that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var FetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_fetch_attempts_total",
}, []string{"outcome"})
var Items = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_items_total",
}, []string{"result"})
var AdmissionRejections = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "courier_admission_rejections_total",
})
var Jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_jobs_total",
}, []string{"kind", "result"})
var ActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "courier_active_jobs",
})
var ArchiveParts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "courier_archive_parts_total",
})
var ArchiveBytes = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "courier_archive_bytes_total",
})
var EntriesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_archive_entries_skipped_total",
}, []string{"reason"})
var PageCache = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_page_cache_lookups_total",
}, []string{"result"})

// Label values.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeExhausted = "exhausted"

	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultPartial   = "partial"
	ResultRejected  = "rejected"

	ReasonTooLarge = "too_large"
	ReasonMissing  = "missing"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

func init() {
	prometheus.MustRegister(FetchAttempts)
	prometheus.MustRegister(Items)
	prometheus.MustRegister(AdmissionRejections)
	prometheus.MustRegister(Jobs)
	prometheus.MustRegister(ActiveJobs)
	prometheus.MustRegister(ArchiveParts)
	prometheus.MustRegister(ArchiveBytes)
	prometheus.MustRegister(EntriesSkipped)
	prometheus.MustRegister(PageCache)
}
