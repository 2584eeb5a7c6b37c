// Package queue carries soil analysis job ids from the API to the worker.
//
// Both backends are lease queues. Dequeue moves an id from the ready list to
// an in-flight set scored by lease expiry; Ack removes it; RequeueExpired
// returns ids whose lease ran out to the ready list. An id is held at most
// once across ready and in-flight, so Enqueue of an id that is already
// queued or being processed is a no-op.
//
// RedisQueue keeps the three structures in Redis and mutates them with Lua
// scripts so each operation is atomic:
//
//	<prefix>:ready     LIST  ids waiting for a worker
//	<prefix>:members   SET   every id in ready or in-flight
//	<prefix>:inflight  ZSET  ids being processed, scored by lease expiry (ms)
//
// MemoryQueue implements the same semantics in-process for tests and
// single-node development.
package queue
