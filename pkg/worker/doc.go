// Package worker runs soil analysis jobs taken from the job queue.
//
// Run leases job ids from the queue and hands each to an async.WorkerPool,
// never leasing more ids than there are free workers. Process claims the
// job, runs inference and records the outcome:
//
//	claim ─┬─ not found      → log, ack, drop
//	       ├─ not claimable  → ack, skip
//	       └─ RUNNING ─ predict ─┬─ error or panic → FAILED (message kept)
//	                             └─ ok             → SUCCESS
//
// A delivery that could not be claimed or finished because of a storage
// error is left unacked; its lease runs out and the sweeper requeues it.
package worker
