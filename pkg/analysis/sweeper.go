package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/agronomy/pkg/config"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/queue"
)

// SweepResult counts what one sweep did
type SweepResult struct {
	LeasesReturned int
	Requeued       int
	Failed         int
}

// Sweeper recovers jobs whose enqueue was lost or whose worker died
type Sweeper struct {
	store   Store
	queue   queue.Queue
	cfg     config.SweeperConfig
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewSweeper creates a sweeper. metrics may be nil.
func NewSweeper(store Store, q queue.Queue, cfg config.SweeperConfig, logger *observability.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		store:   store,
		queue:   q,
		cfg:     cfg,
		logger:  logger.WithField("component", "sweeper"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Sweep runs one recovery pass:
//  1. queue leases that ran out go back to ready
//  2. PENDING jobs older than PendingAfter are enqueued again
//  3. RUNNING jobs with an expired lease are enqueued again, or failed once
//     they have used MaxAttempts claims
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var errs []error

	n, err := s.queue.RequeueExpired(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.LeasesReturned = n
	s.observeRequeue("lease_expired", n)

	stale, err := s.store.ListStalePending(ctx, s.now().Add(-s.cfg.PendingAfter))
	if err != nil {
		errs = append(errs, err)
	}
	for _, id := range stale {
		added, err := s.queue.Enqueue(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if added {
			res.Requeued++
			s.observeRequeue("stale_pending", 1)
		}
	}

	expired, err := s.store.ListExpiredLeases(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	for _, e := range expired {
		if s.cfg.MaxAttempts > 0 && e.Attempts >= s.cfg.MaxAttempts {
			msg := fmt.Sprintf("job lease expired after %d attempts", e.Attempts)
			err := s.store.ExpireJob(ctx, e.ID, msg)
			if errors.Is(err, ErrJobNotRunning) {
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			// The id may still sit in the queue; the worker acks it when the
			// claim is refused.
			res.Failed++
			s.metrics.ObserveJob(string(StatusFailed))
			s.logger.WithField("job_id", e.ID.String()).Warn(msg)
			continue
		}

		added, err := s.queue.Enqueue(ctx, e.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if added {
			res.Requeued++
			s.observeRequeue("running_expired", 1)
		}
	}

	if depth, err := s.queue.Depth(ctx); err == nil && s.metrics != nil {
		s.metrics.QueueDepth.WithLabelValues("ready").Set(float64(depth.Ready))
		s.metrics.QueueDepth.WithLabelValues("in_flight").Set(float64(depth.InFlight))
	}

	return res, errors.Join(errs...)
}

func (s *Sweeper) observeRequeue(reason string, n int) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.JobsRequeuedTotal.WithLabelValues(reason).Add(float64(n))
}

// Start schedules Sweep on the configured cron spec and blocks until ctx is
// done.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweeper: %w", err)
	}

	c.Start()
	s.logger.WithField("schedule", s.cfg.Schedule).Info("sweeper started")

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.logger.Info("sweeper stopped")
	return nil
}

func (s *Sweeper) runOnce(ctx context.Context) {
	defer observability.RecoverPanic(s.logger, "sweeper run")

	res, err := s.Sweep(ctx)
	logger := s.logger.WithFields(map[string]interface{}{
		"leases_returned": res.LeasesReturned,
		"requeued":        res.Requeued,
		"failed":          res.Failed,
	})
	if err != nil {
		logger.WithError(err).Error("sweep finished with errors")
		return
	}
	if res != (SweepResult{}) {
		logger.Info("sweep recovered jobs")
	}
}
