// Package analysis owns the soil analysis job lifecycle.
//
// A job moves through a fixed state machine:
//
//	PENDING --claim--> RUNNING --complete--> SUCCESS
//	                      \------fail------> FAILED
//
// The create path (Manager.Submit) writes PENDING once and enqueues the job
// id. Only the worker writes RUNNING, SUCCESS and FAILED. Claim is a
// conditional UPDATE, so two workers handed the same id cannot both run it.
// A RUNNING job whose lease expired may be claimed again until it reaches
// the attempt limit.
//
// The Sweeper runs on a cron schedule and recovers jobs whose enqueue was
// lost or whose worker died: stale PENDING jobs and expired RUNNING jobs
// are enqueued again, and RUNNING jobs that used up their attempts are
// failed.
package analysis
