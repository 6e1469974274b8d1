package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostSuccessTotal counts successfully dispatched queue items.
	PostSuccessTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shuttle_post_success_total",
			Help: "Total number of successful post submissions",
		},
	)

	// PostFailureTotal counts dispatch attempts that ended in failure.
	PostFailureTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shuttle_post_failure_total",
			Help: "Total number of failed post submissions",
		},
	)

	// QueuePendingItems tracks the current number of pending queue items.
	QueuePendingItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shuttle_queue_pending_items",
			Help: "Current number of pending items in the content queue",
		},
	)

	// AnomalyState is 1 while the failure window is anomalous, 0 otherwise.
	AnomalyState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shuttle_anomaly_state",
			Help: "Whether recent outcomes are failure-dominant (1) or not (0)",
		},
	)

	// AdminAlertsTotal counts alerts pushed to the operator channel.
	AdminAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shuttle_admin_alerts_total",
			Help: "Total number of admin alerts raised by anomaly detection",
		},
	)
)
