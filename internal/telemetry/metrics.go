// Package telemetry provides application-level observability for the
// organization registry.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP listener started in main.go:
//
//	GET http://<host>:<ORGD_TELEMETRY_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is deliberately not part of the Gin router
// so the scrape path stays off the public ingress and bypasses rate limiting.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (the Gin route template) rather than the raw
// request URL so user-supplied organization names cannot inflate label
// cardinality. Lifecycle metrics are labelled with the operation name and a
// coarse outcome, never with the organization name itself.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Organization lifecycle metrics — recorded by the lifecycle service.
//
// OrgLifecycleOperationsTotal is a CounterVec with labels {operation, outcome}.
// operation is one of create/get/update/delete/login; outcome is "ok", an error
// kind ("duplicate_name", "not_found", "unauthorized", …), or "rolled_back" for
// a create whose partition provisioning failed and whose registry row was
// compensated away.
//
// Example PromQL queries:
//   - Create failure ratio:  sum(rate(org_lifecycle_operations_total{operation="create",outcome!="ok"}[1h])) / sum(rate(org_lifecycle_operations_total{operation="create"}[1h]))
//   - Rollback alert:        increase(org_lifecycle_operations_total{outcome="rolled_back"}[30m]) > 0
//
// PartitionOperationsTotal counts physical partition create/rename/drop calls
// by outcome, independent of the registry bookkeeping around them. A sustained
// divergence between create "ok" counts here and create "ok" counts above
// indicates registry/partition drift worth reconciling.
var (
	OrgLifecycleOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "org_lifecycle_operations_total",
			Help: "Total number of organization lifecycle operations, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	PartitionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partition_operations_total",
			Help: "Total number of physical partition operations, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
