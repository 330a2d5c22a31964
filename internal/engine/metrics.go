package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration statuses recorded by fql_subscriptions_registered_total.
const (
	statusEnabled  = "enabled"
	statusDisabled = "disabled"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registered *prometheus.CounterVec
	routed     prometheus.Counter
	matches    *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg creates unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fql",
				Name:      "subscriptions_registered_total",
				Help:      "Total number of subscriptions registered, by status",
			},
			[]string{"status"},
		),
		routed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fql",
				Name:      "events_routed_total",
				Help:      "Total number of events evaluated against the registry",
			},
		),
		matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fql",
				Name:      "subscription_matches_total",
				Help:      "Total number of events matched, by destination and action",
			},
			[]string{"destination", "action"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fql",
				Name:      "route_duration_seconds",
				Help:      "Time spent evaluating one event against all subscriptions",
				Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
	}
}
