package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement (none when timeout <= 0)
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, logger, 5*time.Second, "enqueue job", func(ctx context.Context) error {
//	    return q.Enqueue(ctx, id)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := withOptionalTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
// Still provides panic recovery and context support.
//
// Example:
//
//	SafeGoNoError(ctx, logger, 0, "sweeper", func(ctx context.Context) {
//	    sweeper.Run(ctx)
//	})
func SafeGoNoError(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, logger, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// WorkerPool manages a pool of workers that process tasks from a channel.
// Provides graceful shutdown and error collection.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	logger       *observability.Logger
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	shutdownOnce sync.Once
}

// NewWorkerPool creates a new worker pool. Each task runs with its own
// timeout derived from ctx.
//
// Example:
//
//	pool := NewWorkerPool(ctx, logger, 4, "soil analysis", 60*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return worker.Process(ctx, jobID)
//	})
func NewWorkerPool(ctx context.Context, logger *observability.Logger, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		logger:   logger.WithField("pool", taskName),
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit adds a task to the worker pool, blocking while the queue is full.
// Returns error if pool is shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) (err error) {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool shut down")
	default:
	}

	// A send on workCh closed by a concurrent Shutdown panics.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker pool shut down")
		}
	}()

	select {
	case p.workCh <- fn:
		return nil
	case <-p.doneCh:
		return fmt.Errorf("worker pool shut down")
	}
}

// Shutdown gracefully shuts down the worker pool.
// Waits up to timeout for workers to finish queued tasks.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.closeWork()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

// Errors returns a channel that receives worker errors.
// Non-blocking, use select to check for errors.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) closeWork() {
	p.closeOnce.Do(func() { close(p.workCh) })
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(id, fn)
		}
	}
}

func (p *WorkerPool) run(id int, fn func(context.Context) error) {
	ctx, cancel := withOptionalTimeout(p.ctx, p.timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if perr := observability.PanicError(recover()); perr != nil {
				p.logger.WithError(perr).WithField("worker", id).Error("task panicked")
				err = perr
			}
		}()
		err = fn(ctx)
	}()

	if err != nil {
		select {
		case p.errCh <- err:
		default:
			p.logger.WithError(err).Warn("error channel full, dropping error")
		}
	}
}
