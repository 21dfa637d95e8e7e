package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Logger is the error sink for recovered panics.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler runs goroutines with panic recovery.
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler creates a handler with the given logger.
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo launches fn in a goroutine with panic recovery.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("panic in goroutine: %v\nstack trace:\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext launches fn with a context and panic recovery.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("panic in goroutine (with context): %v\nstack trace:\n%s", r, debug.Stack())
			}
		}()
		fn(ctx)
	}()
}

// SimpleLogger writes recovered panics to stdout.
type SimpleLogger struct{}

func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	fmt.Printf("[ERROR] "+format+"\n", args...)
}

// DefaultRecoveryHandler is the package-level handler.
var DefaultRecoveryHandler = NewRecoveryHandler(&SimpleLogger{})

// SafeGo launches fn through the default handler.
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext launches fn with a context through the default handler.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
