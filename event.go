package aokernel

// Signal is the type tag of an [Event].
type Signal uint16

// Signals below UserSig are reserved for the kernel and the state machine
// layer that drives [Handler] implementations.
const (
	EmptySig Signal = iota
	EntrySig
	ExitSig
	InitSig
	// UserSig is the first signal available to applications.
	UserSig
)

// NoMargin, as a post or allocation margin, requires success: running out
// of capacity is a contract violation rather than a reportable condition.
const NoMargin = ^uint16(0)

// Event is a message delivered to an active object.
//
// Static events are created by the application (e.g. &Event{Sig: ...}) and
// are never reference counted or recycled. Pooled events come from
// [Kernel.NewEvent] or [Kernel.TryNewEvent], and return to their pool once
// the last reference is released. Receivers must treat events as read-only.
type Event struct {
	// Payload is the event data. For pooled events it aliases the pool
	// block, and is only valid until the event is recycled.
	Payload []byte
	block   []byte
	// Sig is the signal of the event.
	Sig     Signal
	poolNum uint8
	refCtr  uint8
	free    bool
}

// Static reports whether e is a static (not pool allocated) event.
func (e *Event) Static() bool { return e.poolNum == 0 }

// PoolID returns the 1-based pool number of a pooled event, or 0.
func (e *Event) PoolID() uint8 { return e.poolNum }

// RefCount returns the number of references the kernel tracks for e. It is
// only meaningful for pooled events, and racy unless observed from the
// thread that holds one of those references.
func (e *Event) RefCount() uint8 { return e.refCtr }

// eventPool is a fixed-capacity free list of equally sized event blocks.
type eventPool struct {
	free      []*Event
	blockSize int
	nTot      int
	nMin      int
}

func newEventPool(num uint8, blockSize, count int) *eventPool {
	p := &eventPool{
		free:      make([]*Event, count),
		blockSize: blockSize,
		nTot:      count,
		nMin:      count,
	}
	// one backing array for every block in the pool
	store := make([]byte, blockSize*count)
	events := make([]Event, count)
	for i := range events {
		e := &events[i]
		e.block = store[i*blockSize : (i+1)*blockSize : (i+1)*blockSize]
		e.poolNum = num
		e.free = true
		p.free[i] = e
	}
	return p
}

// get takes a block if more than margin blocks are free. With NoMargin, it
// only fails when the pool is empty.
func (p *eventPool) get(margin uint16) *Event {
	n := len(p.free)
	if margin == NoMargin {
		if n == 0 {
			return nil
		}
	} else if n <= int(margin) {
		return nil
	}
	e := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	if n-1 < p.nMin {
		p.nMin = n - 1
	}
	e.free = false
	return e
}

func (p *eventPool) put(e *Event) {
	e.free = true
	e.refCtr = 0
	e.Sig = EmptySig
	e.Payload = nil
	clear(e.block)
	p.free = append(p.free, e)
}

// PoolStats is a snapshot of one event pool.
type PoolStats struct {
	BlockSize int
	NTotal    int
	NFree     int
	// NMin is the lowest number of free blocks ever observed.
	NMin int
}

// NewEvent allocates a pooled event with a payload of size bytes. Running
// out of blocks is a contract violation; see [Kernel.TryNewEvent] for the
// fallible variant.
func (k *Kernel) NewEvent(sig Signal, size int) *Event {
	k.mu.Lock()
	e := k.newEventLocked(sig, size, NoMargin)
	if e == nil {
		k.fail("event", 110)
	}
	k.mu.Unlock()
	return e
}

// TryNewEvent allocates a pooled event, leaving at least margin blocks free
// in the chosen pool. It returns [ErrPoolExhausted] if that is not possible.
func (k *Kernel) TryNewEvent(sig Signal, size int, margin uint16) (*Event, error) {
	k.mu.Lock()
	e := k.newEventLocked(sig, size, margin)
	k.mu.Unlock()
	if e == nil {
		k.warnLimited(warnPoolExhausted, 0).
			Int("size", size).
			Int("margin", int(margin)).
			Log("event pool exhausted")
		return nil, ErrPoolExhausted
	}
	return e, nil
}

// newEventLocked picks the smallest pool whose blocks fit size, and never
// falls back to a larger pool.
func (k *Kernel) newEventLocked(sig Signal, size int, margin uint16) *Event {
	if size < 0 {
		k.fail("event", 100)
	}
	var pool *eventPool
	var num int
	for i, p := range k.pools {
		if size <= p.blockSize {
			pool, num = p, i+1
			break
		}
	}
	if pool == nil {
		k.fail("event", 101)
	}
	e := pool.get(margin)
	if e == nil {
		k.emit(TraceRecord{Kind: TraceEventNewAttempt, Sig: sig, PoolID: uint8(num), NFree: uint16(len(pool.free))})
		return nil
	}
	e.Sig = sig
	e.Payload = e.block[:size]
	k.emit(TraceRecord{Kind: TraceEventNew, Sig: sig, PoolID: uint8(num), NFree: uint16(len(pool.free))})
	return e
}

// GC releases one reference to e, recycling it once none remain. It must be
// used for pooled events that were allocated but never posted, and for
// events an extended thread received via [XThread.QueueGet]. Static events
// are ignored.
func (k *Kernel) GC(e *Event) {
	k.mu.Lock()
	k.gcLocked(e)
	k.mu.Unlock()
}

func (k *Kernel) gcLocked(e *Event) {
	if e.poolNum == 0 {
		return
	}
	if e.free || int(e.poolNum) > len(k.pools) {
		k.fail("event", 120)
	}
	if e.refCtr > 1 {
		e.refCtr--
		k.emit(TraceRecord{Kind: TraceEventGCAttempt, Sig: e.Sig, PoolID: e.poolNum, RefCtr: e.refCtr})
		return
	}
	k.emit(TraceRecord{Kind: TraceEventGC, Sig: e.Sig, PoolID: e.poolNum})
	k.pools[e.poolNum-1].put(e)
}

// releaseUnreferenced recycles e if nothing references it. Used on failed
// posts, which must leave the reference count unchanged.
func (k *Kernel) releaseUnreferenced(e *Event) {
	if e.poolNum != 0 && e.refCtr == 0 {
		k.gcLocked(e)
	}
}

func (k *Kernel) retainLocked(e *Event) {
	if e.poolNum == 0 {
		return
	}
	if e.free || e.refCtr == ^uint8(0) {
		k.fail("event", 130)
	}
	e.refCtr++
}

// NewRef adds a reference to a pooled event, keeping it alive past the
// current run-to-completion step. Release it with [Kernel.DeleteRef].
func (k *Kernel) NewRef(e *Event) *Event {
	k.mu.Lock()
	if e.poolNum == 0 {
		k.fail("event", 140)
	}
	k.retainLocked(e)
	k.mu.Unlock()
	return e
}

// DeleteRef releases a reference obtained from [Kernel.NewRef].
func (k *Kernel) DeleteRef(e *Event) {
	k.GC(e)
}
