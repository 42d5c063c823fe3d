package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler client metrics
	SchedulerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_scheduler_requests_total",
			Help: "Total number of HTTP requests to the remote scheduler by operation and status code",
		},
		[]string{"operation", "code"},
	)

	SchedulerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stagehand_scheduler_request_duration_seconds",
			Help:    "Duration of scheduler HTTP requests by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DagVerticesSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_dag_vertices_submitted_total",
			Help: "Total number of DAG vertices streamed to the scheduler",
		},
	)

	DagEdgesSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_dag_edges_submitted_total",
			Help: "Total number of DAG edges streamed to the scheduler",
		},
	)

	BatchesClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_batches_closed_total",
			Help: "Total number of submission batches flushed to the scheduler",
		},
	)

	TasksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_tasks_submitted_total",
			Help: "Total number of task submissions announced to the batch layer",
		},
	)

	// Data plane metrics
	FtpFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_ftp_fetches_total",
			Help: "Total number of FTP fetches by outcome",
		},
		[]string{"outcome"},
	)

	FtpRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_ftp_retries_total",
			Help: "Total number of FTP connection retries",
		},
	)

	FtpBytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_ftp_bytes_read_total",
			Help: "Total bytes fetched from remote daemons",
		},
	)

	DownloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_downloads_total",
			Help: "Total number of files downloaded to the local node for mutation",
		},
	)

	SymlinksMaterialised = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_symlinks_materialised_total",
			Help: "Total number of symbolic links created during location resolution",
		},
	)

	LocationsReported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagehand_locations_reported_total",
			Help: "Total number of file locations reported to the scheduler by mode",
		},
		[]string{"mode"},
	)

	// Manifest metrics
	ManifestRowsParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stagehand_manifest_rows_parsed_total",
			Help: "Total number of manifest rows parsed by the walker",
		},
	)
)

// init registers all metrics with the default registry
func init() {
	prometheus.MustRegister(
		SchedulerRequestsTotal,
		SchedulerRequestDuration,
		DagVerticesSubmitted,
		DagEdgesSubmitted,
		BatchesClosed,
		TasksSubmitted,
		FtpFetchesTotal,
		FtpRetriesTotal,
		FtpBytesRead,
		DownloadsTotal,
		SymlinksMaterialised,
		LocationsReported,
		ManifestRowsParsed,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
