package sweep

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_janitor_runs_total",
			Help: "Total number of sweep runs.",
		},
		[]string{"target", "outcome"},
	)
	backupsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_janitor_backups_scanned_total",
			Help: "Total number of backups listed across runs.",
		},
		[]string{"target"},
	)
	backupsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_janitor_backups_deleted_total",
			Help: "Total number of backups deleted.",
		},
		[]string{"target"},
	)
	bytesFreed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_janitor_bytes_freed_total",
			Help: "Total bytes reclaimed by deletions.",
		},
		[]string{"target"},
	)
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_janitor_run_duration_seconds",
			Help:    "Sweep run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)
	truncatedListings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_janitor_truncated_listings_total",
			Help: "Runs that saw a capped storage listing and may have missed backups.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, backupsScanned, backupsDeleted, bytesFreed, runDuration, truncatedListings)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
