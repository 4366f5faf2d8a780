// Package metrics exposes Prometheus collectors for the manager and worker
// loops plus the /metrics HTTP handler. Collectors are registered at init and
// shared process-wide; the run commands optionally serve Handler() on a
// dedicated listener.
package metrics
