// Package metrics holds the Prometheus collectors reported by the dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notifications"

// Metrics groups the collectors. Construct one per registry.
type Metrics struct {
	Dispatch        *prometheus.CounterVec
	SendDuration    *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge
	BrokerConnected prometheus.Gauge
	Heartbeats      *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Dispatch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Booking messages by terminal pipeline outcome.",
		}, []string{"outcome", "reason"}),
		SendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent preparing and delivering a notification.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Messages waiting in the dispatch queue.",
		}),
		BrokerConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 while the broker connection is up.",
		}),
		Heartbeats: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat publishes by result.",
		}, []string{"result"}),
	}
}
