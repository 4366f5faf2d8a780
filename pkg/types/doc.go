/*
Package types defines the monico domain model: monitors, tasks and probes.

A Monitor is the user-supplied configuration for one HTTP endpoint. A Task is
one scheduled intent to probe a monitor; the manager creates tasks and workers
lease them. A Probe is the immutable record of executing one task.

All validation happens here, before any storage call. NewMonitor enforces the
id charset, name length, endpoint shape and interval range, and normalizes the
endpoint (https:// prepended when the scheme is missing, lowercased). Failures
wrap ErrAttribute so callers can distinguish validation errors with errors.Is.

Task lifecycle:

	pending ──lease──▶ running ──probe recorded──▶ completed
	                      │
	                      ├──stale on lease──▶ abandoned
	                      └──processing error─▶ failed

The structs carry no storage concerns; the storage package maps them to rows.
*/
package types
