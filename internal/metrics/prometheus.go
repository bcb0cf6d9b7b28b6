package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnnouncementsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dasa_announcements_created_total",
		Help: "Announcements created, by origin (admin, event, lost_item)",
	}, []string{"origin"})

	AnnouncementsDeactivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dasa_announcements_deactivated_total",
		Help: "Announcements flipped to inactive, by reason",
	}, []string{"reason"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dasa_reconcile_duration_seconds",
		Help:    "Time spent in one visibility reconciliation pass",
		Buckets: prometheus.DefBuckets,
	})

	ReconcileAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dasa_reconcile_anomalies_total",
		Help: "Dangling or unknown source references seen during reconciliation",
	}, []string{"kind"})

	LifecycleDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dasa_lifecycle_dispatch_failures_total",
		Help: "Lifecycle events whose announcement side effect failed",
	}, []string{"topic"})

	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dasa_scheduler_runs_total",
		Help: "Scheduled job executions by job and status",
	}, []string{"job", "status"})

	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dasa_sse_clients",
		Help: "Current number of SSE clients connected",
	})
)

func IncAnnouncementCreated(origin string) {
	AnnouncementsCreated.WithLabelValues(labelOrUnknown(origin)).Inc()
}

func AddAnnouncementsDeactivated(reason string, count int64) {
	if count <= 0 {
		return
	}
	AnnouncementsDeactivated.WithLabelValues(labelOrUnknown(reason)).Add(float64(count))
}

func ObserveReconcileDuration(duration time.Duration) {
	ReconcileDuration.Observe(duration.Seconds())
}

func IncReconcileAnomaly(kind string) {
	ReconcileAnomalies.WithLabelValues(labelOrUnknown(kind)).Inc()
}

func IncLifecycleDispatchFailure(topic string) {
	LifecycleDispatchFailures.WithLabelValues(labelOrUnknown(topic)).Inc()
}

func IncSchedulerRun(job, status string) {
	SchedulerRuns.WithLabelValues(labelOrUnknown(job), labelOrUnknown(status)).Inc()
}

func SetSSEClients(count int) {
	if count < 0 {
		count = 0
	}
	SSEClients.Set(float64(count))
}

func labelOrUnknown(value string) string {
	label := strings.TrimSpace(value)
	if label == "" {
		return "unknown"
	}
	return label
}
