package aokernel

import (
	"github.com/joeycumines/go-aokernel/internal/gid"
)

// waitReason records what a blocked extended thread is waiting for.
type waitReason uint8

const (
	waitNone waitReason = iota
	waitQueue
	waitDelay
	waitMutex
	waitSem
)

// NoTimeout, as a tick count, waits without a timeout.
const NoTimeout uint32 = 0

// XThread is an extended thread: a function running on its own goroutine,
// which, unlike a basic thread, may block on a [Mutex], a [Semaphore], its
// own event queue, or a delay. It still only runs while it holds the CPU,
// so it preempts and is preempted by other threads strictly by priority.
//
// The embedded [Active] provides the thread's event queue, for posting to
// it, and its subscriptions.
type XThread struct {
	Active
	fn       func(x *XThread)
	resume   chan struct{}
	waitObj  any
	timeEvt  TimeEvent
	gid      uint64
	waitOn   waitReason
	timedOut bool
	exited   bool
}

// NewXThread creates an extended thread that will run fn, timing its
// blocking calls in ticks of the given rate. It uses one time event slot.
func (k *Kernel) NewXThread(fn func(x *XThread), rate uint8) (*XThread, error) {
	if fn == nil {
		k.raise(&AssertionError{Module: "xthread", Location: 1})
	}
	x := &XThread{
		fn:     fn,
		resume: make(chan struct{}, 1),
	}
	x.k = k
	x.h = HandlerFuncs{}
	x.x = x
	x.timeEvt = TimeEvent{k: k, act: &x.Active, rate: rate}
	k.mu.Lock()
	if int(rate) >= len(k.timers.heads) {
		k.fail("xthread", 100)
	}
	ok := k.timers.alloc(&x.timeEvt)
	k.mu.Unlock()
	if !ok {
		return nil, ErrTimeEventLimit
	}
	return x, nil
}

func (x *XThread) priority() Priority {
	if x == nil {
		return 0
	}
	return x.prio
}

// Start registers the thread at prio, with a queue holding up to qLen+1
// events, and makes it ready. The thread function starts once it is
// scheduled, which may be before Start returns.
func (x *XThread) Start(prio Priority, qLen int) {
	k := x.k
	c := k.enter()
	if x.started {
		k.fail("xthread", 200)
	}
	k.register(&x.Active, prio)
	x.eQueue.init(k, qLen)
	x.started = true
	x.exited = false
	x.waitOn = waitNone
	k.readySet.Insert(prio)

	go x.run()

	k.log.Debug().
		Int("prio", int(prio)).
		Log("extended thread started")
	k.leave(c)
}

func (x *XThread) run() {
	k := x.k
	x.gid = gid.Get()
	<-x.resume
	k.mu.Lock()
	k.cpuGID = x.gid
	// the CPU may have been handed over just before something more urgent
	// became ready
	k.schedX(x)
	k.mu.Unlock()

	x.fn(x)

	k.exitX(x)
}

// exitX unregisters a thread whose function returned, and hands the CPU to
// the next thread without waiting for it back.
func (k *Kernel) exitX(x *XThread) {
	k.mu.Lock()
	if k.curr != x || k.lockHolder == x.prio || x.prio != x.pprio {
		// exited holding a scheduler lock or a mutex
		k.fail("xthread", 300)
	}
	prio := x.pprio
	k.readySet.Remove(prio)
	k.unsubscribeAllLocked(&x.Active)
	for !x.eQueue.empty() {
		k.gcLocked(x.eQueue.pop())
	}
	k.disarmLocked(&x.timeEvt)
	k.unregister(&x.Active)
	x.started = false
	x.exited = true

	var next *XThread
	if p := k.nextPrio(); p != 0 {
		next = k.registry[p].x
	}
	k.curr = next
	k.emit(TraceRecord{Kind: TraceContextSwitch, Prio: next.priority(), Other: prio})
	if k.metrics != nil {
		k.metrics.contextSwitches++
	}
	k.mu.Unlock()
	if next == nil {
		k.mainResume <- struct{}{}
	} else {
		next.resume <- struct{}{}
	}

	k.log.Debug().
		Int("prio", int(prio)).
		Log("extended thread exited")
}

// blockable asserts the caller is x, running, and free to block.
func (k *Kernel) blockable(x *XThread, c callerCtx) {
	if c != ctxThread || x == nil || k.curr != x || x.waitOn != waitNone {
		k.fail("xthread", 400)
	}
	if k.lockHolder == x.prio && k.lockCeil != 0 {
		k.fail("xthread", 401)
	}
}

// block removes the running thread x from the ready set and waits until it
// is readied and scheduled again, with an optional timeout.
func (k *Kernel) block(x *XThread, why waitReason, obj any, nTicks uint32) {
	x.waitOn = why
	x.waitObj = obj
	x.timedOut = false
	if nTicks != NoTimeout {
		k.armLocked(&x.timeEvt, nTicks)
	}
	k.readySet.Remove(x.prio)
	k.emit(TraceRecord{Kind: TraceBlock, Prio: x.prio, Ctr: nTicks})
	k.schedX(x)
	x.waitObj = nil
}

// unblock readies a blocked thread on behalf of the object it waits for.
func (k *Kernel) unblock(x *XThread) {
	k.disarmLocked(&x.timeEvt)
	x.waitOn = waitNone
	k.readySet.Insert(x.prio)
	k.emit(TraceRecord{Kind: TraceUnblock, Prio: x.prio})
}

// threadTimeout readies a thread whose blocking call timed out, taking it
// out of the wait set of the object it waited for, so that a later signal
// or unlock finds no such waiter.
func (k *Kernel) threadTimeout(x *XThread) {
	if x.waitOn == waitNone {
		return
	}
	x.timedOut = true
	switch obj := x.waitObj.(type) {
	case *Mutex:
		obj.waitSet.Remove(x.prio)
	case *Semaphore:
		obj.waitSet.Remove(x.prio)
	}
	k.readySet.Insert(x.prio)
	k.emit(TraceRecord{Kind: TraceTimeout, Prio: x.prio})
}

// Delay blocks the calling thread for nTicks ticks. It returns false if the
// delay was cut short by DelayCancel.
func (x *XThread) Delay(nTicks uint32) bool {
	k := x.k
	c := k.enter()
	k.blockable(x, c)
	if nTicks == 0 {
		k.fail("xthread", 500)
	}
	k.block(x, waitDelay, nil, nTicks)
	expired := x.timedOut
	x.waitOn = waitNone
	k.mu.Unlock()
	return expired
}

// DelayCancel wakes x if it is blocked in Delay, reporting whether it was.
func (x *XThread) DelayCancel() bool {
	k := x.k
	c := k.enter()
	if x.waitOn != waitDelay || x.timedOut {
		k.leave(c)
		return false
	}
	k.unblock(x)
	k.leave(c)
	return true
}

// QueueGet receives the next event from the thread's own queue, blocking
// for up to nTicks ticks ([NoTimeout] waits forever). It returns nil on
// timeout. The caller owns the reference to the event, and must release it
// with [Kernel.GC] once done, unless it reposts it.
func (x *XThread) QueueGet(nTicks uint32) *Event {
	k := x.k
	c := k.enter()
	k.blockable(x, c)
	if x.eQueue.empty() {
		k.block(x, waitQueue, nil, nTicks)
		x.waitOn = waitNone
	}
	var e *Event
	if !x.eQueue.empty() {
		e = x.eQueue.pop()
		k.emit(TraceRecord{Kind: TraceQueueGet, Prio: x.pprio, Sig: e.Sig, RefCtr: e.refCtr, NFree: x.eQueue.nFree})
	}
	k.mu.Unlock()
	return e
}

// Exited reports whether the thread function has returned.
func (x *XThread) Exited() bool {
	x.k.mu.Lock()
	defer x.k.mu.Unlock()
	return x.exited
}
