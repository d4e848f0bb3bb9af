// Package metric exposes gatekeeper's Prometheus metrics.
//
//   - prometheus.go: registry, /metrics handler and HTTP middleware
//   - collector.go: a collector that reads the request monitor on scrape
package metric
