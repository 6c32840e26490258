/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP API
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kfsh_api_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_api_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kfsh_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Reservations and capacity
var (
	ReservationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_reservation_transitions_total",
		Help: "Reservation state transitions by target status and outcome.",
	}, []string{"to", "outcome"})

	CapacityRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_capacity_rejections_total",
		Help: "Capacity requests rejected by reason.",
	}, []string{"reason"})

	IntegrityAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_integrity_alerts_total",
		Help: "Data integrity alerts raised by the ledger or the integrity scan.",
	}, []string{"kind"})

	WindowsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_windows_generated_total",
		Help: "Capacity window drafts by generation outcome.",
	}, []string{"outcome"})

	BatchesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_batches_created_total",
		Help: "Batches materialized from suggestions by product.",
	}, []string{"product"})

	SuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_batch_suggestions_total",
		Help: "Batch suggestions computed by feasibility.",
	}, []string{"feasible"})
)

// Background workers
var (
	ExpirySweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_expiry_sweep_runs_total",
		Help: "Expiry sweep passes by result.",
	}, []string{"result"})

	ExpiredReservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kfsh_expired_reservations_total",
		Help: "Reservations driven to EXPIRED by the sweep.",
	})

	ExpirySweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kfsh_expiry_sweep_duration_seconds",
		Help:    "Duration of one expiry sweep pass.",
		Buckets: prometheus.DefBuckets,
	})

	OutboxDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_outbox_deliveries_total",
		Help: "Order-creation request deliveries by sink and result.",
	}, []string{"sink", "result"})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kfsh_outbox_pending",
		Help: "Order-creation requests waiting for delivery.",
	})

	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kfsh_leader_election_status",
		Help: "1 when this instance holds the named lease.",
	}, []string{"instance_id"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_leader_election_changes_total",
		Help: "Leadership transitions by instance and event.",
	}, []string{"instance_id", "event"})
)

// Database
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kfsh_database_query_duration_seconds",
		Help:    "GORM operation latency by operation and table.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_database_errors_total",
		Help: "GORM operation errors.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kfsh_database_connections_active",
		Help: "Open database connections.",
	})
)

// Cache
var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_cache_hits_total",
		Help: "Cache hits by key prefix.",
	}, []string{"prefix"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kfsh_cache_misses_total",
		Help: "Cache misses by key prefix.",
	}, []string{"prefix"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
