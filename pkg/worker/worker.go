package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/async"
	"github.com/platinummonkey/agronomy/pkg/config"
	"github.com/platinummonkey/agronomy/pkg/inference"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/queue"
)

// ErrNoPredictor is returned by New without a predictor
var ErrNoPredictor = errors.New("worker requires a predictor")

const finishTimeout = config.JobFinishTimeout

// Lifecycle is the part of analysis.Manager the worker drives
type Lifecycle interface {
	Claim(ctx context.Context, id uuid.UUID) (*analysis.Job, error)
	Complete(ctx context.Context, id uuid.UUID, p *inference.Prediction) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

// Worker processes analysis jobs
type Worker struct {
	queue     queue.Queue
	jobs      Lifecycle
	predictor inference.Predictor
	cfg       config.WorkerConfig
	poll      time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New creates a worker. poll is how long Run waits when the queue is empty.
// metrics may be nil.
func New(q queue.Queue, jobs Lifecycle, predictor inference.Predictor, cfg config.WorkerConfig, poll time.Duration,
	logger *observability.Logger, metrics *observability.Metrics) (*Worker, error) {
	if predictor == nil {
		return nil, ErrNoPredictor
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		queue:     q,
		jobs:      jobs,
		predictor: predictor,
		cfg:       cfg,
		poll:      poll,
		logger:    logger.WithField("component", "worker"),
		metrics:   metrics,
	}, nil
}

// Run leases and processes jobs until ctx is done, then waits for running
// jobs to finish.
func (w *Worker) Run(ctx context.Context) error {
	pool := async.NewWorkerPool(context.WithoutCancel(ctx), w.logger, w.cfg.Concurrency, "soil analysis", w.cfg.JobTimeout)
	slots := make(chan struct{}, w.cfg.Concurrency)

	w.logger.WithField("concurrency", w.cfg.Concurrency).Info("worker started")
	defer func() {
		timeout := w.cfg.JobTimeout + finishTimeout
		if err := pool.Shutdown(timeout); err != nil {
			w.logger.WithError(err).Warn("worker pool shutdown incomplete")
		}
		w.logger.Info("worker stopped")
	}()

	for {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			<-slots
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, queue.ErrEmpty) {
				w.logger.WithError(err).Error("failed to dequeue job")
			}
			if !sleep(ctx, w.poll) {
				return nil
			}
			continue
		}

		id := d.JobID
		err = pool.Submit(func(ctx context.Context) error {
			defer func() { <-slots }()
			if err := w.Process(ctx, id); err != nil {
				// The delivery stays in flight until its lease expires.
				w.logger.WithError(err).WithField("job_id", id.String()).Error("job processing failed")
			}
			return nil
		})
		if err != nil {
			<-slots
			w.logger.WithError(err).WithField("job_id", id.String()).Error("failed to submit job")
		}
	}
}

// Process runs one job. Returned errors leave the delivery unacked.
func (w *Worker) Process(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "worker.process")
	span.SetAttributes(attribute.String("job.id", id.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := observability.WithTraceContext(ctx, w.logger).WithField("job_id", id.String())
	started := time.Now()

	job, err := w.jobs.Claim(ctx, id)
	switch {
	case errors.Is(err, analysis.ErrJobNotFound):
		logger.Error("job not found")
		return w.ack(ctx, id)
	case errors.Is(err, analysis.ErrJobNotClaimable):
		logger.Info("job not claimable, skipping")
		return w.ack(ctx, id)
	case err != nil:
		return fmt.Errorf("claim job %s: %w", id, err)
	}
	logger = logger.WithField("attempt", job.Attempts)
	logger.Info("starting soil analysis")

	prediction, predictErr := w.predict(ctx, job.Spectra)

	// The job deadline may already have passed; the outcome is still written.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	status := analysis.StatusSuccess
	if predictErr != nil {
		status = analysis.StatusFailed
		logger.WithError(predictErr).Error("prediction failed")
		err = w.jobs.Fail(finishCtx, id, predictErr.Error())
	} else {
		logger.WithFields(map[string]interface{}{
			"method": prediction.Method,
			"values": prediction.Values,
		}).Info("prediction complete")
		err = w.jobs.Complete(finishCtx, id, prediction)
	}

	if errors.Is(err, analysis.ErrJobNotRunning) {
		// The sweeper expired the job while it ran.
		logger.Warn("job left RUNNING before its outcome was recorded")
		return w.ack(finishCtx, id)
	}
	if err != nil {
		return fmt.Errorf("record job %s outcome: %w", id, err)
	}

	if w.metrics != nil {
		w.metrics.JobDuration.WithLabelValues(string(status)).Observe(time.Since(started).Seconds())
	}
	return w.ack(finishCtx, id)
}

// predict converts a predictor panic into an error
func (w *Worker) predict(ctx context.Context, spectra []float64) (p *inference.Prediction, err error) {
	defer func() {
		if perr := observability.PanicError(recover()); perr != nil {
			p, err = nil, perr
		}
	}()
	p, err = w.predictor.Predict(ctx, spectra)
	if err == nil && p == nil {
		err = errors.New("predictor returned no prediction")
	}
	return p, err
}

func (w *Worker) ack(ctx context.Context, id uuid.UUID) error {
	if err := w.queue.Ack(ctx, id); err != nil {
		return fmt.Errorf("ack job %s: %w", id, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
