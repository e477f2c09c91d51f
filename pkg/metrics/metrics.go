package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Patient context metrics
	ContextSwitches *prometheus.CounterVec
	ContextClears   prometheus.Counter
	ContextLookups  *prometheus.CounterVec

	// Notification metrics
	NotificationsCreated    prometheus.Counter
	NotificationsMarkedRead prometheus.Counter
	NotificationsDeleted    prometheus.Counter
	CleanupDeleted          prometheus.Counter
	CleanupLatency          prometheus.Histogram
	StreamConnections       prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
}

// New creates the metrics and registers them on reg. A nil registry leaves
// them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ContextSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_switches_total",
			Help:      "Total number of patient context switches by result",
		}, []string{"result"}),
		ContextClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_clears_total",
			Help:      "Total number of patient context clears",
		}),
		ContextLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_lookups_total",
			Help:      "Effective patient resolutions by source",
		}, []string{"source"}),
		NotificationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of notifications created",
		}),
		NotificationsMarkedRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_marked_read_total",
			Help:      "Total number of notifications marked as read",
		}),
		NotificationsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_deleted_total",
			Help:      "Total number of notifications deleted by users",
		}),
		CleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_cleanup_deleted_total",
			Help:      "Read notifications removed by the retention worker",
		}),
		CleanupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_cleanup_duration_seconds",
			Help:      "Time spent in a retention sweep",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		StreamConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_stream_connections",
			Help:      "Open notification websocket streams",
		}),
		RedisOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ContextSwitches,
			m.ContextClears,
			m.ContextLookups,
			m.NotificationsCreated,
			m.NotificationsMarkedRead,
			m.NotificationsDeleted,
			m.CleanupDeleted,
			m.CleanupLatency,
			m.StreamConnections,
			m.RedisOperations,
		)
	}

	return m
}
