// Package app is the thin composition root over storage, manager and worker.
// The CLI builds a Store from configuration, wraps it in an App and dispatches
// every command to one of its operations.
package app
