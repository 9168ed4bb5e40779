package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Simplici0/signquote/internal/pricing"
)

const outcomeOK = "ok"

type metrics struct {
	calculations        *prometheus.CounterVec
	calculationDuration prometheus.Histogram
	lifecycle           *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		calculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signquote_calculations_total",
				Help: "Quote item calculations by outcome kind",
			},
			[]string{"outcome"},
		),
		calculationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signquote_calculation_duration_seconds",
				Help:    "Time taken to validate and price one quote item",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		lifecycle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signquote_pricing_set_transitions_total",
				Help: "Pricing set lifecycle transitions by target status and result",
			},
			[]string{"status", "result"},
		),
	}
	reg.MustRegister(m.calculations, m.calculationDuration, m.lifecycle)
	return m
}

// observeCalculation records one pricing attempt.
func (m *metrics) observeCalculation(started time.Time, err error) {
	m.calculationDuration.Observe(time.Since(started).Seconds())
	m.calculations.WithLabelValues(outcome(err)).Inc()
}

func (m *metrics) observeTransition(status string, err error) {
	result := outcomeOK
	if err != nil {
		result = "refused"
	}
	m.lifecycle.WithLabelValues(status, result).Inc()
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if kind := pricing.KindOf(err); kind != "" {
		return kind
	}
	return "error"
}
