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

// HTTP API metrics.
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cadence_api_request_duration_seconds",
		Help:    "HTTP request latency by method, endpoint, and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_api_requests_total",
		Help: "HTTP requests served by method, endpoint, and status.",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cadence_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Database metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cadence_database_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_database_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cadence_database_connections_active",
		Help: "Open database connections.",
	})
)

// Scheduler metrics.
var (
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadence_scheduler_ticks_total",
		Help: "Scheduler loop iterations.",
	})

	SchedulerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_scheduler_errors_total",
		Help: "Scheduler errors by account and stage.",
	}, []string{"account", "stage"})

	PostsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadence_posts_scheduled_total",
		Help: "Posts moved into a posting slot by the scheduler.",
	})

	PostsPublishDueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadence_posts_publish_due_total",
		Help: "Posts whose slot arrived and were handed to delivery.",
	})

	SlotsCalculatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadence_slots_calculated_total",
		Help: "Slot calculation requests served.",
	})
)

// Delivery and coordination metrics.
var (
	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_webhook_deliveries_total",
		Help: "Outbound webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})

	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cadence_leader_election_status",
		Help: "1 when the instance holds leadership, 0 otherwise.",
	}, []string{"instance"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_leader_election_changes_total",
		Help: "Leadership transitions by instance and direction.",
	}, []string{"instance", "direction"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
