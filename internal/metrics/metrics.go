package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the scrape pipeline. Labels stay low-cardinality: job type
// and a coarse status, never keywords or product ids.
var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "worker",
		Name:      "jobs_total",
		Help:      "Scrape jobs processed, by job type and outcome status.",
	}, []string{"type", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sip",
		Subsystem: "worker",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of scrape jobs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"type"})

	CardsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "scrape",
		Name:      "cards_extracted_total",
		Help:      "Product cards extracted from result pages.",
	}, []string{"type"})

	PagesVisited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "scrape",
		Name:      "pages_visited_total",
		Help:      "Result pages fully collected by the paginator.",
	})

	BrowserRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "browser",
		Name:      "restarts_total",
		Help:      "Browser relaunches after a lost connection.",
	})

	PagesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sip",
		Subsystem: "browser",
		Name:      "pages_open",
		Help:      "Browser tabs currently open.",
	})

	JobsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "queue",
		Name:      "jobs_dead_lettered_total",
		Help:      "Jobs moved to the dead-letter list after exhausting retries.",
	}, []string{"type"})

	JobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "queue",
		Name:      "jobs_retried_total",
		Help:      "Job attempts rescheduled with backoff.",
	}, []string{"type"})

	RecordsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sip",
		Subsystem: "ingest",
		Name:      "records_upserted_total",
		Help:      "Product records written, by insert or update.",
	}, []string{"action"})
)
