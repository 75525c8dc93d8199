// Package metrics records pipeline stage timings and outcomes.
// The Prometheus recorder can dump its registry to a node_exporter textfile.
package metrics
