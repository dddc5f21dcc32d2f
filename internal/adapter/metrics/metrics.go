package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the log viewer service.
type Metrics struct {
	UploadsTotal        *prometheus.CounterVec
	UploadBytesTotal    prometheus.Counter
	QueriesTotal        *prometheus.CounterVec
	QueryDuration       prometheus.Histogram
	QueryLinesReturned  prometheus.Histogram
	CleanupRunsTotal    *prometheus.CounterVec
	CleanupFilesRemoved prometheus.Counter
	StoredFiles         prometheus.Gauge
}

// New initializes and registers the Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "upload",
			Name:      "uploads_total",
			Help:      "Total number of upload requests by outcome.",
		}, []string{"status"}), // status: accepted, duplicate, rejected, error
		UploadBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Total number of uploaded bytes accepted into storage.",
		}),
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "query",
			Name:      "queries_total",
			Help:      "Total number of log queries by outcome.",
		}, []string{"status"}), // status: ok, truncated, bad_request, not_found, error
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logview",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of log query scans.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		QueryLinesReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logview",
			Subsystem: "query",
			Name:      "lines_returned",
			Help:      "Number of lines returned per query.",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 6),
		}),
		CleanupRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Total number of cleanup runs by task.",
		}, []string{"task"}), // task: reconcile, full_reset
		CleanupFilesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "cleanup",
			Name:      "files_removed_total",
			Help:      "Total number of physical files removed by cleanup.",
		}),
		StoredFiles: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "logview",
			Subsystem: "storage",
			Name:      "stored_files_gauge",
			Help:      "Number of physical files currently in the upload directory.",
		}),
	}
}
