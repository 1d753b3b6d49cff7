package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Events counts chat events by pipeline outcome
	Events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_bridge_events_total",
		Help: "Chat events processed, by pipeline outcome.",
	}, []string{"outcome"})

	// Deliveries counts converter delivery attempts by status
	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_bridge_deliveries_total",
		Help: "Converter delivery attempts, by status.",
	}, []string{"status"})

	// QueueEvictions counts entries dropped from a full queue
	QueueEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signal_bridge_queue_evictions_total",
		Help: "Entries dropped because the queue was full.",
	})

	// QueueDepth is the number of signals waiting for delivery
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signal_bridge_queue_depth",
		Help: "Signals waiting for delivery.",
	})

	// TokenLogins counts converter logins by result
	TokenLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_bridge_token_logins_total",
		Help: "Converter logins, by result (ok/fail).",
	}, []string{"result"})
)

var registerOnce sync.Once

// Register adds every collector to the default registry
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Events, Deliveries,
			QueueEvictions, QueueDepth,
			TokenLogins,
		)
	})
}
