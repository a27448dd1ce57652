package aokernel

// EventQueue is a bounded queue of event references. The front event is
// held outside the ring, so a queue created for n entries holds n+1.
//
// Active objects and extended threads own one each. Standalone queues, from
// [Kernel.NewEventQueue], are used to defer events (see [Active.Defer]).
type EventQueue struct {
	k        *Kernel
	frontEvt *Event
	ring     []*Event
	head     int
	tail     int
	nFree    uint16
	nMin     uint16
}

func (q *EventQueue) init(k *Kernel, n int) {
	if n < 0 || n >= int(NoMargin) {
		k.fail("queue", 100)
	}
	*q = EventQueue{
		k:     k,
		ring:  make([]*Event, n),
		nFree: uint16(n + 1),
	}
	q.nMin = q.nFree
}

// push performs the FIFO insert without retaining e. wasEmpty reports
// whether e became the front event.
func (q *EventQueue) push(e *Event, margin uint16) (ok, wasEmpty bool) {
	if margin == NoMargin {
		if q.nFree == 0 {
			q.k.fail("queue", 110)
		}
	} else if q.nFree <= margin {
		return false, false
	}
	q.k.retainLocked(e)
	q.nFree--
	if q.nFree < q.nMin {
		q.nMin = q.nFree
	}
	if q.frontEvt == nil {
		q.frontEvt = e
		return true, true
	}
	q.ring[q.head] = e
	q.head++
	if q.head == len(q.ring) {
		q.head = 0
	}
	return true, false
}

// pushFront makes e the front event, moving the previous front back into
// the ring ahead of every other entry.
func (q *EventQueue) pushFront(e *Event) (wasEmpty bool) {
	if q.nFree == 0 {
		q.k.fail("queue", 120)
	}
	q.k.retainLocked(e)
	q.nFree--
	if q.nFree < q.nMin {
		q.nMin = q.nFree
	}
	prev := q.frontEvt
	q.frontEvt = e
	if prev == nil {
		return true
	}
	if q.tail == 0 {
		q.tail = len(q.ring)
	}
	q.tail--
	q.ring[q.tail] = prev
	return false
}

// pop removes the front event. The reference held by the queue passes to
// the caller. The queue must not be empty.
func (q *EventQueue) pop() *Event {
	e := q.frontEvt
	if e == nil {
		q.k.fail("queue", 130)
	}
	q.nFree++
	if int(q.nFree) <= len(q.ring) {
		q.frontEvt = q.ring[q.tail]
		q.ring[q.tail] = nil
		q.tail++
		if q.tail == len(q.ring) {
			q.tail = 0
		}
	} else {
		q.frontEvt = nil
	}
	return e
}

func (q *EventQueue) empty() bool { return q.frontEvt == nil }

// NewEventQueue creates a standalone queue with room for n+1 events.
func (k *Kernel) NewEventQueue(n int) *EventQueue {
	var q EventQueue
	k.mu.Lock()
	q.init(k, n)
	k.mu.Unlock()
	return &q
}

// Post appends e if more than margin entries are free, taking a reference
// to it. On failure the event is recycled if nothing references it, and
// false is returned. With [NoMargin], a full queue is a contract violation.
func (q *EventQueue) Post(e *Event, margin uint16) bool {
	q.k.mu.Lock()
	ok, _ := q.push(e, margin)
	if ok {
		q.k.emit(TraceRecord{Kind: TraceQueuePost, Sig: e.Sig, RefCtr: e.refCtr, NFree: q.nFree, NMin: q.nMin})
	} else {
		q.k.emit(TraceRecord{Kind: TraceQueuePostAttempt, Sig: e.Sig, RefCtr: e.refCtr, NFree: q.nFree})
		q.k.releaseUnreferenced(e)
	}
	q.k.mu.Unlock()
	return ok
}

// PostLIFO inserts e at the front, so the next Get returns it. A full queue
// is a contract violation.
func (q *EventQueue) PostLIFO(e *Event) {
	q.k.mu.Lock()
	q.pushFront(e)
	q.k.emit(TraceRecord{Kind: TraceQueuePostLIFO, Sig: e.Sig, RefCtr: e.refCtr, NFree: q.nFree, NMin: q.nMin})
	q.k.mu.Unlock()
}

// Get removes and returns the front event, or nil if the queue is empty.
// The caller receives the queue's reference and must eventually release it
// with [Kernel.GC], unless it reposts the event.
func (q *EventQueue) Get() *Event {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	if q.frontEvt == nil {
		return nil
	}
	e := q.pop()
	q.k.emit(TraceRecord{Kind: TraceQueueGet, Sig: e.Sig, RefCtr: e.refCtr, NFree: q.nFree})
	return e
}

// NFree returns the number of free entries.
func (q *EventQueue) NFree() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return int(q.nFree)
}

// NMin returns the lowest number of free entries ever observed.
func (q *EventQueue) NMin() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return int(q.nMin)
}

// Cap returns the total number of entries, including the front slot.
func (q *EventQueue) Cap() int { return len(q.ring) + 1 }
