// Package metrics exposes Prometheus counters for the pricing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	registry *prometheus.Registry

	QuotesTotal          *prometheus.CounterVec
	QuoteFailures        *prometheus.CounterVec
	LifecycleTransitions *prometheus.CounterVec
	OverlapRejections    prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecard_quotes_total",
			Help: "Quotes computed, by rate type and urgency tier.",
		}, []string{"rate_type", "urgency"}),
		QuoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecard_quote_failures_total",
			Help: "Quote computations aborted, by error code.",
		}, []string{"code"}),
		LifecycleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratecard_lifecycle_transitions_total",
			Help: "Rate table lifecycle transitions, by event type.",
		}, []string{"event"}),
		OverlapRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratecard_overlap_rejections_total",
			Help: "Activations rejected because an active schedule overlapped.",
		}),
	}

	registry.MustRegister(
		m.QuotesTotal,
		m.QuoteFailures,
		m.LifecycleTransitions,
		m.OverlapRejections,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
