package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for authorization activity.
type Metrics struct {
	PermissionChecks  *prometheus.CounterVec
	SessionPhases     *prometheus.CounterVec
	ResolvedSetSize   prometheus.Histogram
	BroadcastFailures prometheus.Counter
}

// NewMetrics constructs and registers the authorization collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "permission_checks_total",
		Help:      "Total number of permission checks partitioned by kind and outcome.",
	}, []string{"kind", "outcome"})

	phases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "session_phase_transitions_total",
		Help:      "Total number of session phase transitions partitioned by target phase.",
	}, []string{"phase"})

	setSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "authz",
		Name:      "resolved_permission_set_size",
		Help:      "Distribution of effective permission set sizes after resolution.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	broadcastFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "session_broadcast_failures_total",
		Help:      "Total number of session events that could not be published to the broadcast channel.",
	})

	for _, collector := range []prometheus.Collector{checks, phases, setSize, broadcastFailures} {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return &Metrics{
		PermissionChecks:  checks,
		SessionPhases:     phases,
		ResolvedSetSize:   setSize,
		BroadcastFailures: broadcastFailures,
	}, nil
}
