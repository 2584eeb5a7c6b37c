package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager runs registered cleanup functions in reverse registration
// order, so resources opened first are closed last.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu    sync.Mutex
	names []string
	funcs []ShutdownFunc
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{logger: logger, timeout: timeout}
}

// Register adds a named cleanup function
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.names = append(sm.names, name)
	sm.funcs = append(sm.funcs, fn)
}

// Shutdown runs every registered function, continuing past failures, and
// returns the joined errors. The whole run is bounded by the manager timeout.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	sm.mu.Lock()
	names := append([]string(nil), sm.names...)
	funcs := append([]ShutdownFunc(nil), sm.funcs...)
	sm.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("shutdown timeout reached before %s", names[i]))
			break
		}
		sm.logger.Infof("Shutting down %s", names[i])
		if err := funcs[i](ctx); err != nil {
			sm.logger.WithError(err).Errorf("Shutdown of %s failed", names[i])
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
		}
	}

	return errors.Join(errs...)
}
