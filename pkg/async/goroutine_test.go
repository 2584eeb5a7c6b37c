package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

// syncBuffer guards a bytes.Buffer written from background goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*observability.Logger, *syncBuffer) {
	out := &syncBuffer{}
	return observability.NewLogger(observability.DebugLevel, out), out
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	logger, out := testLogger()
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "panic task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	<-done
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "PANIC recovered")
	}, time.Second, 10*time.Millisecond)
}

func TestSafeGo_LogsError(t *testing.T) {
	logger, out := testLogger()

	SafeGo(context.Background(), logger, time.Second, "failing task", func(ctx context.Context) error {
		return errors.New("enqueue failed")
	})

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "enqueue failed") && strings.Contains(s, "failing task")
	}, time.Second, 10*time.Millisecond)
}

func TestSafeGo_ContextCancellation(t *testing.T) {
	logger, _ := testLogger()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	SafeGo(ctx, logger, 0, "long task", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("task did not observe cancellation")
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	logger, _ := testLogger()
	result := make(chan error, 1)

	SafeGo(context.Background(), logger, 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		result <- ctx.Err()
		return nil
	})

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("timeout not enforced")
	}
}

func TestSafeGoNoError(t *testing.T) {
	logger, _ := testLogger()
	var ran atomic.Bool
	done := make(chan struct{})

	SafeGoNoError(context.Background(), logger, 0, "no error", func(ctx context.Context) {
		ran.Store(true)
		close(done)
	})

	<-done
	assert.True(t, ran.Load())
}

func TestWorkerPool_Basic(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 3, "basic", time.Second)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_WithErrors(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 2, "errors", time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			return errors.New("task failed")
		}))
	}
	require.NoError(t, pool.Shutdown(time.Second))

	var errs []error
	for len(errs) < 3 {
		select {
		case err := <-pool.Errors():
			errs = append(errs, err)
		case <-time.After(time.Second):
			t.Fatalf("expected 3 errors, got %d", len(errs))
		}
	}
}

func TestWorkerPool_PanicBecomesError(t *testing.T) {
	logger, out := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 1, "panics", time.Second)

	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		panic("predictor exploded")
	}))
	require.NoError(t, pool.Shutdown(time.Second))

	select {
	case err := <-pool.Errors():
		assert.Contains(t, err.Error(), "predictor exploded")
	case <-time.After(time.Second):
		t.Fatal("expected panic error")
	}
	assert.Contains(t, out.String(), "task panicked")
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 2, "shutdown", time.Second)

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Error(t, pool.Submit(func(ctx context.Context) error { return nil }))

	// Second shutdown is a no-op.
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_Timeout(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 1, "timeout", 20*time.Millisecond)

	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, pool.Shutdown(time.Second))

	select {
	case err := <-pool.Errors():
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("expected timeout error")
	}
}
