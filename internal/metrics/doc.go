// Package metrics exposes ingestor counters to Prometheus and serves the
// operational HTTP endpoints.
//
// Collectors read component snapshots at scrape time:
//   - Ingestion loop: frames by outcome, reconnects, queue depth, state
//   - Sink: writes by result, errors by kind, retries
//   - Database pool: acquired/idle/total connections
//   - Live projection: Redis writes and failures
//
// Endpoints: /metrics, /health, /debug/stats.
package metrics
