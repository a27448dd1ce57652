package aokernel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// checkNumGoroutines returns a func to be deferred, which fails the test if
// the number of goroutines does not return to what it was, within timeout.
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	before := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for {
			after := runtime.NumGoroutine()
			if after <= before {
				return
			}
			if time.Now().After(deadline) {
				t.Errorf("goroutines: before=%d after=%d", before, after)
				return
			}
			time.Sleep(time.Millisecond * 5)
		}
	}
}

// recorder is a TraceSink keeping every record.
type recorder struct {
	records []TraceRecord
	mu      sync.Mutex
}

func (r *recorder) Emit(rec TraceRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// filter returns the records of the given kinds, in order.
func (r *recorder) filter(kinds ...TraceKind) []TraceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TraceRecord
	for _, rec := range r.records {
		for _, k := range kinds {
			if rec.Kind == k {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// journal is an append-only log of what happened, in order, shared by
// handlers and thread functions.
type journal struct {
	lines []string
	mu    sync.Mutex
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	j.lines = append(j.lines, fmt.Sprintf(format, args...))
	j.mu.Unlock()
}

func (j *journal) get() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

// logHandler journals every dispatched signal as "<name>:<sig>".
func logHandler(j *journal, name string) Handler {
	return HandlerFuncs{DispatchFunc: func(e *Event) {
		j.add("%s:%d", name, e.Sig)
	}}
}

func newTestKernel(t *testing.T, opts ...Option) (*Kernel, *recorder) {
	t.Helper()
	rec := new(recorder)
	k, err := New(append([]Option{
		WithEventPool(16, 4),
		WithEventPool(64, 2),
		WithTraceSink(rec),
	}, opts...)...)
	require.NoError(t, err)
	return k, rec
}

// requireAssertion runs fn, which must raise the given assertion on the
// calling goroutine.
func requireAssertion(t *testing.T, module string, location int, fn func()) {
	t.Helper()
	var v any
	func() {
		defer func() { v = recover() }()
		fn()
	}()
	require.NotNil(t, v, "expected %s:%d", module, location)
	err, ok := v.(error)
	require.True(t, ok, "panic value %v", v)
	var ae *AssertionError
	require.True(t, errors.As(err, &ae), "panic value %v", v)
	require.Equal(t, module, ae.Module)
	require.Equal(t, location, ae.Location)
}

// goexitOnAssert returns an option and a channel receiving the assertion
// raised on any goroutine, which then exits. The kernel is left wedged, so
// calls that would wait for the failed thread must run on a goroutine of
// their own.
func goexitOnAssert() (Option, <-chan *AssertionError) {
	ch := make(chan *AssertionError, 1)
	return WithAssertHandler(func(err *AssertionError) {
		select {
		case ch <- err:
		default:
		}
		runtime.Goexit()
	}), ch
}

func waitAssertion(t *testing.T, ch <-chan *AssertionError) *AssertionError {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("no assertion raised")
		return nil
	}
}

// currPrioOf returns the effective priority of a thread.
func currPrioOf(x *XThread) Priority {
	x.k.mu.Lock()
	defer x.k.mu.Unlock()
	return x.prio
}
