package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the staffing engine. It covers
// lifecycle transitions, point awards and the per-recipient outcome of
// notification dispatch batches.
type Metrics struct {
	EventTransitions  *prometheus.CounterVec   // Counter for event lifecycle transitions
	NotificationsSent *prometheus.CounterVec   // Counter for per-recipient dispatch outcomes
	PointsGranted     prometheus.Counter       // Counter for points credited to staff
	LevelUps          prometheus.Counter       // Counter for staff level-ups
	DispatchDuration  *prometheus.HistogramVec // Histogram for dispatch batch durations
}

// NewMetrics creates a new Metrics instance registered with the provided
// Prometheus Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EventTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "crewmuster_event_transitions_total",
			Help: "Total number of event lifecycle transitions",
		}, []string{"transition"}), // transition: published, closed, cancelled, reinstated, updated, deleted
		NotificationsSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "crewmuster_notifications_total",
			Help: "Per-recipient notification outcomes",
		}, []string{"channel", "status"}), // status: sent, skipped, failed
		PointsGranted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "crewmuster_points_granted_total",
			Help: "Total points credited to staff through awards and positive adjustments",
		}),
		LevelUps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "crewmuster_level_ups_total",
			Help: "Total number of staff level-ups",
		}),
		DispatchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crewmuster_dispatch_duration_seconds",
			Help:    "Duration of notification dispatch batches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
	}
}
