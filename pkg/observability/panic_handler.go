package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
// Call it directly in a defer statement:
//
//	defer observability.RecoverPanic(logger, "sweeper run")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithField("panic", fmt.Sprint(r)).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}

// PanicError converts a recovered value into an error, or nil when r is nil.
//
//	defer func() {
//	    if perr := observability.PanicError(recover()); perr != nil {
//	        err = perr
//	    }
//	}()
func PanicError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
