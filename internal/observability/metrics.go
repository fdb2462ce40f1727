package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "frames_captured_total",
		Help:      "Total number of frames captured by kiosks",
	}, []string{"kiosk_id"})

	ScanTicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "scan_ticks_skipped_total",
		Help:      "Scan ticks skipped because a frame was still being processed",
	})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timeclock",
		Name:      "extraction_duration_seconds",
		Help:      "Duration of descriptor extraction stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ExtractionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "extraction_failures_total",
		Help:      "Descriptor extractions that failed, by reason",
	}, []string{"reason"})

	PunchesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "punches_accepted_total",
		Help:      "Attendance events appended, by kind",
	}, []string{"kind"})

	PunchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "punches_rejected_total",
		Help:      "Punch attempts rejected, by reason",
	}, []string{"reason"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeclock",
		Name:      "queue_depth",
		Help:      "Number of pending frame tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timeclock",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeclock",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
