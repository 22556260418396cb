// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package authdb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultConflict = "conflict"
	resultError    = "error"
)

// Metrics times backend operations. A nil *Metrics records nothing.
type Metrics struct {
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the operation histogram.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geekcraft_authdb_operation_duration_seconds",
				Help:    "Duration of auth storage operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"backend", "operation", "result"},
		),
	}
	reg.MustRegister(m.Duration)
	return m
}

func (m *Metrics) observe(backend Kind, operation, result string, started time.Time) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(string(backend), operation, result).Observe(time.Since(started).Seconds())
}
