package aokernel

// Handler is the behavior of an active object, typically a state machine.
// Init is called once, on the thread that starts the active object, and
// Dispatch once per event, run to completion on the kernel's main context.
// Neither may block.
type Handler interface {
	Init(par *Event)
	Dispatch(e *Event)
}

// HandlerFuncs adapts a pair of functions to a [Handler]. Either may be nil.
type HandlerFuncs struct {
	InitFunc     func(par *Event)
	DispatchFunc func(e *Event)
}

// Init implements [Handler].
func (x HandlerFuncs) Init(par *Event) {
	if x.InitFunc != nil {
		x.InitFunc(par)
	}
}

// Dispatch implements [Handler].
func (x HandlerFuncs) Dispatch(e *Event) {
	if x.DispatchFunc != nil {
		x.DispatchFunc(e)
	}
}

// Active is an active object: a [Handler] with a private event queue and a
// unique priority. Unless it belongs to an [XThread], it is a basic thread,
// dispatched to completion by the scheduler whenever its queue is not
// empty and nothing more urgent is ready.
type Active struct {
	k      *Kernel
	h      Handler
	x      *XThread
	eQueue EventQueue
	// prio is the current priority, which differs from pprio while an
	// extended thread is boosted by a mutex ceiling
	prio    Priority
	pprio   Priority
	started bool
	// ready is set once Init has returned
	ready bool
}

// NewActive creates an active object driven by h. It does nothing until
// started.
func (k *Kernel) NewActive(h Handler) *Active {
	if h == nil {
		k.raise(&AssertionError{Module: "active", Location: 1})
	}
	return &Active{k: k, h: h}
}

// Kernel returns the kernel a belongs to.
func (a *Active) Kernel() *Kernel { return a.k }

// Priority returns the (base) priority a was started at, or 0.
func (a *Active) Priority() Priority {
	a.k.mu.Lock()
	defer a.k.mu.Unlock()
	return a.pprio
}

// Start registers a at prio, with a queue holding up to qLen+1 events, then
// calls Init with par on the calling goroutine. Events posted by Init are
// dispatched once Start makes a ready.
func (a *Active) Start(prio Priority, qLen int, par *Event) {
	k := a.k
	k.mu.Lock()
	if a.started || a.x != nil {
		k.fail("active", 200)
	}
	k.register(a, prio)
	a.eQueue.init(k, qLen)
	a.started = true
	k.mu.Unlock()

	k.log.Info().
		Int("prio", int(prio)).
		Int("queue", qLen+1).
		Log("active object started")

	a.h.Init(par)

	c := k.enter()
	a.ready = true
	if !a.eQueue.empty() {
		k.readySet.Insert(a.prio)
	}
	k.leave(c)
}

// Stop unregisters a basic active object, discarding its queued events and
// subscriptions. It must be called by a itself, from Dispatch. The object
// may be started again later.
func (a *Active) Stop() {
	k := a.k
	c := k.enter()
	if c != ctxThread || k.curr != nil || k.actPrio != a.prio || a.x != nil {
		k.fail("active", 210)
	}
	prio := a.prio
	k.unsubscribeAllLocked(a)
	for !a.eQueue.empty() {
		k.gcLocked(a.eQueue.pop())
	}
	k.unregister(a)
	a.started = false
	a.ready = false
	k.mu.Unlock()

	k.log.Info().
		Int("prio", int(prio)).
		Log("active object stopped")
}

// Post appends e to the queue of a, if more than margin entries are free.
// It returns false otherwise, recycling e if nothing else references it.
// With [NoMargin] the post must succeed, and a full queue is a contract
// violation. Posting may preempt the caller.
func (a *Active) Post(e *Event, margin uint16) bool {
	k := a.k
	c := k.enter()
	// e may be recycled by a refused post
	sig := e.Sig
	ok := k.postLocked(a, e, margin)
	prio, nFree := a.pprio, a.eQueue.nFree
	k.leave(c)
	if !ok {
		k.warnLimited(warnPostRefused, prio).
			Int("sig", int(sig)).
			Int("margin", int(margin)).
			Int("nfree", int(nFree)).
			Log("post refused")
	}
	return ok
}

// PostLIFO inserts e at the front of the queue of a, so it is the next to
// be dispatched. It is intended for an active object reposting to itself.
// A full queue is a contract violation.
func (a *Active) PostLIFO(e *Event) {
	k := a.k
	c := k.enter()
	k.postLIFOLocked(a, e)
	k.leave(c)
}

func (k *Kernel) postLocked(a *Active, e *Event, margin uint16) bool {
	if !a.started {
		k.fail("active", 300)
	}
	ok, wasEmpty := a.eQueue.push(e, margin)
	if !ok {
		k.emit(TraceRecord{Kind: TracePostAttempt, Prio: a.pprio, Sig: e.Sig, RefCtr: e.refCtr, NFree: a.eQueue.nFree, NMin: a.eQueue.nMin})
		k.releaseUnreferenced(e)
		return false
	}
	k.emit(TraceRecord{Kind: TracePost, Prio: a.pprio, Sig: e.Sig, RefCtr: e.refCtr, NFree: a.eQueue.nFree, NMin: a.eQueue.nMin})
	if wasEmpty {
		k.queueNotEmpty(a)
	}
	return true
}

func (k *Kernel) postLIFOLocked(a *Active, e *Event) {
	if !a.started {
		k.fail("active", 310)
	}
	wasEmpty := a.eQueue.pushFront(e)
	k.emit(TraceRecord{Kind: TracePostLIFO, Prio: a.pprio, Sig: e.Sig, RefCtr: e.refCtr, NFree: a.eQueue.nFree, NMin: a.eQueue.nMin})
	if wasEmpty {
		k.queueNotEmpty(a)
	}
}

// queueNotEmpty makes the owner of a queue that just became non-empty
// ready: basic threads once initialized, and extended threads only if they
// are blocked receiving from it.
func (k *Kernel) queueNotEmpty(a *Active) {
	if a.x == nil {
		if a.ready {
			k.readySet.Insert(a.prio)
		}
		return
	}
	if a.x.waitOn == waitQueue {
		k.disarmLocked(&a.x.timeEvt)
		a.x.waitOn = waitNone
		k.readySet.Insert(a.x.prio)
	}
}

// Defer saves e, which a is currently dispatching, to q for later recall.
// It returns false if q is full.
func (a *Active) Defer(q *EventQueue, e *Event) bool {
	k := a.k
	k.mu.Lock()
	ok, _ := q.push(e, 0)
	k.emit(TraceRecord{Kind: TraceDefer, Prio: a.pprio, Sig: e.Sig, RefCtr: e.refCtr, NFree: q.nFree})
	k.mu.Unlock()
	return ok
}

// Recall moves the oldest event deferred to q to the front of the queue of
// a. It returns false if q is empty.
func (a *Active) Recall(q *EventQueue) bool {
	k := a.k
	c := k.enter()
	if q.empty() {
		k.leave(c)
		return false
	}
	e := q.pop()
	k.postLIFOLocked(a, e)
	// the reference held by q moves to the queue of a
	if e.poolNum != 0 {
		if e.refCtr < 2 {
			k.fail("active", 400)
		}
		e.refCtr--
	}
	k.emit(TraceRecord{Kind: TraceRecall, Prio: a.pprio, Sig: e.Sig, RefCtr: e.refCtr})
	k.leave(c)
	return true
}

// FlushDeferred discards every event deferred to q, returning the count.
func (a *Active) FlushDeferred(q *EventQueue) int {
	k := a.k
	k.mu.Lock()
	var n int
	for !q.empty() {
		k.gcLocked(q.pop())
		n++
	}
	k.mu.Unlock()
	return n
}

// QueueStats is a snapshot of the queue of an active object.
type QueueStats struct {
	Prio  Priority
	Cap   int
	NFree int
	// NMin is the lowest number of free entries ever observed.
	NMin int
}
