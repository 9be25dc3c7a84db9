// Package metrics holds the prometheus collectors of the conversation domain
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rsvp"

var (
	// Outbound sends partitioned by message kind and result (ok, error)
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound chat messages by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Inbound webhook messages partitioned by how they were routed
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound chat messages by routing outcome",
		},
		[]string{"outcome"},
	)

	// State machine transitions taken
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_transitions_total",
			Help:      "Conversation state machine transitions",
		},
		[]string{"transition"},
	)

	// Delivery status entries applied or skipped as duplicates
	DeliveryUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_status_updates_total",
			Help:      "Delivery status updates by status and result",
		},
		[]string{"status", "result"},
	)

	// Bulk jobs reaching a terminal status
	BulkJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_jobs_total",
			Help:      "Bulk send jobs by final status",
		},
		[]string{"status"},
	)

	// Bulk job currently being executed, 0 or 1
	BulkJobRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bulk_job_running",
			Help:      "Whether a bulk job is being executed",
		},
	)

	// Time spent waiting for the per conversation lock
	LockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_lock_wait_seconds",
			Help:      "Time spent waiting for the per conversation lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 20},
		},
	)
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
