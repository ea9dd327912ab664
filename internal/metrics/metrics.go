package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MonitorMetrics holds the Prometheus metrics exported by the monitor
type MonitorMetrics struct {
	// Tailing metrics
	RowsRead          prometheus.Counter
	RowsSkipped       prometheus.Counter
	RotationsDetected prometheus.Counter

	// Parsing anomalies
	TimestampFallbacks prometheus.Counter

	// Alert metrics
	AlertsDispatched *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	AlertsSuppressed prometheus.Counter
}

// NewMonitorMetrics registers the monitor metrics with the given registerer
func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	factory := promauto.With(reg)

	return &MonitorMetrics{
		RowsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "yolo_monitor_rows_read_total",
			Help: "Total detection log lines read from the tailed file",
		}),
		RowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "yolo_monitor_rows_skipped_total",
			Help: "Total lines skipped as malformed or blank",
		}),
		RotationsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "yolo_monitor_rotations_detected_total",
			Help: "Total file rotations or truncations recovered",
		}),
		TimestampFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "yolo_monitor_timestamp_fallbacks_total",
			Help: "Rows whose timestamp failed to parse and fell back to wall clock",
		}),
		AlertsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yolo_monitor_alerts_dispatched_total",
			Help: "Alerts successfully delivered to the receiver",
		}, []string{"type", "class"}),
		DispatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yolo_monitor_dispatch_failures_total",
			Help: "Alert deliveries that failed (non-2xx or network error)",
		}, []string{"type", "class"}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "yolo_monitor_alerts_suppressed_total",
			Help: "Rows dropped by duplicate suppression",
		}),
	}
}
