package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan Metrics
	ScansStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artdedup_scans_started_total",
			Help: "Total number of full duplicate scans started",
		},
	)

	ScansFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_scans_finished_total",
			Help: "Total number of full duplicate scans finished, by final state",
		},
		[]string{"state"}, // "completed", "cancelled", "failed"
	)

	ScansRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artdedup_scans_running",
			Help: "Current number of running duplicate scans",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artdedup_scan_duration_seconds",
			Help:    "Duration of full duplicate scans in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
	)

	PairsCompared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artdedup_pairs_compared_total",
			Help: "Total number of record pairs scored by the comparators",
		},
	)

	CandidatesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_candidates_detected_total",
			Help: "Total number of new duplicate candidates written, by method",
		},
		[]string{"method"},
	)

	ScanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_scan_errors_total",
			Help: "Total number of per-item scan failures that were skipped",
		},
		[]string{"stage"}, // "fingerprint", "profile", "insert"
	)

	// Fingerprint Metrics
	FingerprintsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_fingerprints_generated_total",
			Help: "Total number of image fingerprint attempts, by outcome",
		},
		[]string{"outcome"}, // "ok", "unreadable", "error"
	)

	FingerprintDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artdedup_fingerprint_duration_seconds",
			Help:    "Time to decode and hash one image",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Resolution Metrics
	CandidatesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_candidates_resolved_total",
			Help: "Total number of candidate resolutions, by resolution",
		},
		[]string{"resolution"},
	)

	CandidatesReset = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artdedup_candidates_reset_total",
			Help: "Total number of resolved candidates reset for re-detection",
		},
	)

	// Merge Metrics
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_merges_total",
			Help: "Total number of merge attempts, by outcome",
		},
		[]string{"outcome"}, // "merged", "conflict", "rejected", "error"
	)

	ChildrenReassigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_children_reassigned_total",
			Help: "Total number of child rows moved to a merge target, by table",
		},
		[]string{"table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artdedup_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artdedup_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFingerprint records one fingerprint attempt.
func RecordFingerprint(outcome string, duration time.Duration) {
	FingerprintsGenerated.WithLabelValues(outcome).Inc()
	FingerprintDuration.Observe(duration.Seconds())
}

// RecordScanFinished records a scan reaching a final state.
func RecordScanFinished(state string, duration time.Duration) {
	ScansFinished.WithLabelValues(state).Inc()
	ScanDuration.Observe(duration.Seconds())
}
