/*
Package manager implements the scheduling loop of the monitoring system.

The manager is stateless: on every tick it reads all monitors from the shared
store (ordered by last_task_at descending) and enqueues a PENDING task for
each monitor whose interval has elapsed since its last task. Monitors that
have never been scheduled are always due.

	forever {
	    timer = 5s
	    for m in list_monitors(LAST_TASK_AT_DESC) {
	        if m.last_task_at == nil || now - m.last_task_at >= m.interval {
	            create_task(m)   // also stamps m.last_task_at, atomically
	        }
	    }
	    wait(timer)              // pass duration and 5s overlap
	}

The manager and the workers never talk to each other; the database is the
only rendezvous. One manager per deployment is assumed — a second instance is
harmless but enqueues redundant tasks.

Errors inside a tick are logged and the loop continues; the next tick retries
naturally. Cancelling the context stops the loop cleanly.
*/
package manager
