package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteCallsTotal tracks recognition-service calls by operation and status.
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_calls_total",
			Help: "Recognition service calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RemoteCallDuration tracks recognition-service call latency in seconds.
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Recognition service call duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// CameraHandles tracks camera device handles currently held (0 or 1).
	CameraHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camera_handles_held",
			Help: "Camera device handles currently held by the capture manager",
		},
	)

	// CaptureSubmissions tracks enrollment capture submissions by outcome.
	CaptureSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_submissions_total",
			Help: "Enrollment capture submissions by outcome",
		},
		[]string{"outcome"},
	)

	// ReportsExported tracks attendance reports written to disk.
	ReportsExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_exported_total",
			Help: "Attendance CSV reports written to the export directory",
		},
	)
)
