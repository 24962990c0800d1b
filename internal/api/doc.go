// Package api hosts the optional live status server for a running crawl.
// Routes:
//   - GET /healthz for liveness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the running session's counters.
package api
