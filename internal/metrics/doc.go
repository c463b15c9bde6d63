// Package metrics declares the Prometheus collectors exported by the daemon on
// /metrics. Collectors are registered on the default registry at init.
package metrics
