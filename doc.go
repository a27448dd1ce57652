// Package aokernel implements a real-time, priority-based kernel for active
// objects: single-threaded handlers, each fed by a private event queue, that
// run to completion in strict priority order on one logical CPU.
//
// # Threads
//
// An [Active] started without an [XThread] is a basic thread. The scheduler
// dispatches its events one at a time, each to completion, and a more
// urgent thread preempts it only between or during calls into the kernel.
// An [XThread] is an extended thread, a function on its own goroutine that
// may block on a [Mutex], a [Semaphore], its event queue, or a delay.
//
// # Events
//
// Events are either static, owned by the application, or pooled, allocated
// from fixed-size pools configured with [WithEventPool] and reference
// counted by the kernel. Posts never block: a queue that cannot keep the
// requested margin free refuses the post, and [NoMargin] turns that into a
// contract violation.
//
// # Contexts
//
// Any goroutine may call into the kernel. A goroutine that finds the CPU
// free runs the scheduler until nothing is ready; calls made while another
// goroutine holds the CPU are treated like interrupts, and take effect at
// the running thread's next scheduling point.
//
// # Contract violations
//
// Misuse, such as registering two threads at one priority, is reported via
// an [*AssertionError] to the handler set with [WithAssertHandler], which
// panics by default. Expected conditions, such as a refused post or a
// timed out wait, are return values.
package aokernel
