// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Platform fetch and resolve outcomes
// - Refresh and auto-heal runs
// - Cache efficiency
// - WebSocket connections

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	SnapshotsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_snapshots_inserted_total",
			Help: "Total number of score snapshots appended",
		},
		[]string{"platform", "status"}, // status: "found", "not_listed"
	)

	// Platform Fetch Metrics
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_fetch_attempts_total",
			Help: "Total number of platform score fetch attempts",
		},
		[]string{"platform", "outcome"}, // outcome: "found", "not_listed", "rate_limited", "timeout", "api_error", "no_identity"
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_fetch_duration_seconds",
			Help:    "Duration of platform score fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform"},
	)

	ResolveOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alias_resolve_outcomes_total",
			Help: "Total number of alias resolution attempts by final status",
		},
		[]string{"platform", "status"}, // status: "resolved", "needs_review", "not_listed", "scrape_failed", "timeout"
	)

	// Refresh Run Metrics
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_seconds",
			Help:    "Duration of refresh runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}, // bulk runs pace themselves over minutes
		},
		[]string{"scope"}, // "cell", "property", "all"
	)

	RefreshCellsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_cells_processed_total",
			Help: "Total number of property/platform cells processed during refresh runs",
		},
	)

	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refresh_last_success_timestamp",
			Help: "Unix timestamp of last completed refresh run",
		},
	)

	// Auto-Heal Metrics
	AutoHealGapsFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autoheal_gaps_found",
			Help: "Number of missing property/platform scores found by the last sweep",
		},
	)

	AutoHealResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoheal_results_total",
			Help: "Total number of auto-heal items by final state",
		},
		[]string{"result"}, // "resolved", "failed"
	)

	AutoHealDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoheal_sweep_duration_seconds",
			Help:    "Duration of auto-heal sweeps in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "scores", "insights"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Insights Metrics
	InsightsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_generated_total",
			Help: "Total number of AI insight generations",
		},
		[]string{"result"}, // "success", "failure"
	)

	InsightsGatewayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insights_gateway_duration_seconds",
			Help:    "Duration of LLM gateway calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordFetch records one platform fetch attempt
func RecordFetch(platform, outcome string, duration time.Duration) {
	FetchAttempts.WithLabelValues(platform, outcome).Inc()
	FetchDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRefreshRun records a completed refresh run
func RecordRefreshRun(scope string, duration time.Duration, cells int) {
	RefreshDuration.WithLabelValues(scope).Observe(duration.Seconds())
	RefreshCellsProcessed.Add(float64(cells))
	RefreshLastSuccess.Set(float64(time.Now().Unix()))
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
