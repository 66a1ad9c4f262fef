// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for operation metrics.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid"
	OutcomeDuplicate      = "duplicate"
	OutcomeNotFound       = "not_found"
	OutcomeBadSecret      = "bad_secret"
	OutcomeNoChallenge    = "no_challenge"
	OutcomeExpired        = "expired"
	OutcomeMismatch       = "mismatch"
	OutcomeNotifyFailed   = "notify_failed"
	OutcomeStorageFailure = "storage_failure"
)

// Operations is the counter for auth operations.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "classgate_auth_operations_total",
		Help: "Total number of auth operations by operation, kind and outcome",
	},
	[]string{"operation", "kind", "outcome"},
)

// OperationDuration is the histogram for auth operation latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "classgate_auth_operation_duration_seconds",
		Help:    "Auth operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// SessionsSwept counts sessions removed by the idle sweeper.
var SessionsSwept = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "classgate_sessions_swept_total",
		Help: "Total number of idle sessions removed by the sweeper",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(SessionsSwept)
}

func observe(operation string, kind Kind, outcome string, start time.Time) {
	kindLabel := ""
	if kind.Valid() {
		kindLabel = kind.String()
	}
	Operations.WithLabelValues(operation, kindLabel, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
