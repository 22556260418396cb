// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds service counters. A nil *Metrics records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Sweeps   *prometheus.CounterVec
}

// NewMetrics creates and registers auth service metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geekcraft_auth_requests_total",
				Help: "Total number of auth service calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geekcraft_auth_session_sweeps_total",
				Help: "Total number of expired-session sweeps by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.Requests)
	reg.MustRegister(m.Sweeps)

	return m
}

func (m *Metrics) request(operation, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) sweep(outcome string) {
	if m == nil {
		return
	}
	m.Sweeps.WithLabelValues(outcome).Inc()
}
