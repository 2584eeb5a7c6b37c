// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs a function in a goroutine with panic recovery, an optional
// timeout and error logging:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "enqueue job", func(ctx context.Context) error {
//		return q.Enqueue(ctx, id)
//	})
//
// WorkerPool runs submitted tasks on a fixed number of goroutines, each task
// under its own timeout. The soil analysis worker processes jobs on one.
//
//	pool := async.NewWorkerPool(ctx, logger, 4, "soil analysis", time.Minute)
//	defer pool.Shutdown(5 * time.Second)
//	pool.Submit(func(ctx context.Context) error { return w.Process(ctx, id) })
package async
