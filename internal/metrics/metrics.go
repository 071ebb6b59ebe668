// Package metrics exposes the Prometheus instrumentation shared by the
// server and worker.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SubmissionsTotal counts graded submissions by terminal verdict.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_submissions_total",
		Help: "Graded submissions by verdict.",
	}, []string{"verdict", "language"})

	// TestCaseDuration observes wall-clock seconds per sandboxed test
	// case run.
	TestCaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "judge_testcase_duration_seconds",
		Help:    "Sandbox wall-clock time per test case.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
	}, []string{"language"})

	// QueueJobs counts queue operations by kind (enqueued, claimed,
	// acked, requeued, dropped).
	QueueJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_queue_jobs_total",
		Help: "Submission queue operations.",
	}, []string{"op"})

	// WSSessions tracks currently connected progress channel sessions.
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "judge_ws_sessions",
		Help: "Connected WebSocket sessions.",
	})

	// WSDropped counts frames dropped because a session's buffer was
	// full.
	WSDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_ws_dropped_frames_total",
		Help: "Progress frames dropped for slow sessions.",
	})

	// PushFailures counts failed cross-process push deliveries.
	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_push_failures_total",
		Help: "Failed internal push deliveries.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
