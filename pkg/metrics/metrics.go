// Package metrics provides Prometheus metrics for the bramble service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// APIRequestsTotal tracks served API requests
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	// APIRequestDuration tracks served API request duration
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RegistryQueriesTotal tracks entity source queries by kind and outcome
	RegistryQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "registry",
			Name:      "queries_total",
			Help:      "Total number of registry queries",
		},
		[]string{"kind", "status"},
	)

	// RegistryCacheTotal tracks response cache lookups
	RegistryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "registry",
			Name:      "cache_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"},
	)

	// MalformedRecordsTotal tracks rows skipped during normalization
	MalformedRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "registry",
			Name:      "malformed_records_total",
			Help:      "Total number of registry rows skipped as malformed",
		},
	)

	// ExpansionsTotal tracks expansion runs
	ExpansionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "expansion",
			Name:      "runs_total",
			Help:      "Total number of expansions by status",
		},
		[]string{"status"},
	)

	// ExpansionRecords tracks records returned per expansion
	ExpansionRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "expansion",
			Name:      "records",
			Help:      "Records returned per expansion",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// MergesTotal tracks node merges by origin (manual, tidy, company_name)
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "graph",
			Name:      "merges_total",
			Help:      "Total number of node groups merged",
		},
		[]string{"origin"},
	)

	// ParseFailuresTotal tracks labels the name or street parser rejected
	ParseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "dedup",
			Name:      "parse_failures_total",
			Help:      "Total number of labels that failed to parse",
		},
		[]string{"kind"},
	)

	// TidyDuration tracks deduplication run duration
	TidyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "dedup",
			Name:      "duration_seconds",
			Help:      "Duration of deduplication runs in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"pass"},
	)

	// TasksTotal tracks background task outcomes
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "tasks",
			Name:      "completed_total",
			Help:      "Total number of background tasks by name and outcome",
		},
		[]string{"name", "outcome"},
	)

	// TasksInFlight tracks tasks currently running
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bramble",
			Subsystem: "tasks",
			Name:      "in_flight",
			Help:      "Number of background tasks currently running",
		},
	)

	// GraphNodes tracks node count per workspace
	GraphNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bramble",
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Number of nodes in a workspace graph",
		},
		[]string{"workspace_id"},
	)

	// GraphEdges tracks edge count per workspace
	GraphEdges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bramble",
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Number of edges in a workspace graph",
		},
		[]string{"workspace_id"},
	)

	// ExcludedNodesTotal tracks nodes removed by the exclusion filter
	ExcludedNodesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "maintenance",
			Name:      "excluded_nodes_total",
			Help:      "Total number of placeholder nodes removed",
		},
	)

	// StubRounds tracks how many re-query rounds stub resolution needed
	StubRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "maintenance",
			Name:      "stub_rounds",
			Help:      "Re-query rounds per stub resolution",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// UnresolvedStubs tracks stubs left unlabeled after resolution
	UnresolvedStubs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "maintenance",
			Name:      "unresolved_stubs_total",
			Help:      "Total number of stubs left unresolved",
		},
	)

	// EventsPublishedTotal tracks graph events written to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of graph events published",
		},
		[]string{"event_type", "status"},
	)
)
