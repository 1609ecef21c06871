// Package metrics exposes Prometheus instrumentation for scans, fingerprint
// generation, candidate resolution, merges and the HTTP API.
//
// Collectors register with the default registry through promauto; the daemon
// serves them at /metrics via promhttp.Handler.
package metrics
