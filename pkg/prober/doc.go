// Package prober executes HTTP GET probes for the worker and maps transport
// outcomes onto the probe record: status code on success, timeout or
// connection_error otherwise. The response time is always the measured
// wall-clock elapsed, including on failure.
package prober
