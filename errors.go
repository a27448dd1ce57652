package aokernel

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted is returned by [Kernel.TryNewEvent] when the event
	// pool cannot supply a block while keeping the requested margin free.
	ErrPoolExhausted = errors.New("aokernel: event pool exhausted")

	// ErrKernelRunning is returned by [Kernel.Run] when the kernel is
	// already being driven by another Run call.
	ErrKernelRunning = errors.New("aokernel: kernel is already running")

	// ErrTimeEventLimit is returned by [Kernel.NewTimeEvent] and
	// [Kernel.NewXThread] once every time event slot is in use.
	ErrTimeEventLimit = errors.New("aokernel: time event limit reached")

	// ErrInvalidConfig is wrapped by every [ConfigError].
	ErrInvalidConfig = errors.New("aokernel: invalid config")
)

// AssertionError reports a contract violation, e.g. a duplicate priority, an
// unlock by a thread that does not hold the mutex, or a post that overflows a
// queue with [NoMargin]. The kernel state is not safe to use once one has
// been raised.
type AssertionError struct {
	// Module names the kernel component that detected the violation.
	Module string
	// Location identifies the check within the module.
	Location int
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("aokernel: assertion failed: %s:%d", e.Module, e.Location)
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Cause error
	Field string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("aokernel: invalid config: %s", e.Field)
	}
	return fmt.Sprintf("aokernel: invalid config: %s: %v", e.Field, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *ConfigError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInvalidConfig}
	}
	return []error{ErrInvalidConfig, e.Cause}
}

// AssertHandler receives contract violations. It must not return; the
// kernel panics with the error if it does.
type AssertHandler func(err *AssertionError)

func defaultAssertHandler(err *AssertionError) {
	panic(err)
}
