/*
Package worker implements the probing half of the monitoring system.

A worker loops forever: lease up to BatchSize pending tasks through the
storage lease protocol, execute all probes of the batch concurrently, then
start the next lease attempt once both the batch and a MinWait sleep have
finished. The joined sleep bounds the query load on the shared store at one
lease per five seconds per worker regardless of batch duration.

Per leased task:

  - a task older than StaleThreshold (measured from creation, not lease) is
    marked ABANDONED without any HTTP call;
  - otherwise the monitor is resolved and its endpoint probed with a 5 s
    total deadline; the outcome — status code, timeout or connection error,
    plus the optional body-regexp match — is recorded as a Probe, which
    atomically completes the task.

Workers scale horizontally: the lease protocol guarantees no two workers ever
receive the same task, so adding workers adds throughput linearly until the
store saturates.
*/
package worker
