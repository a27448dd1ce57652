package aokernel

// Semaphore is a counting semaphore. Extended threads may block in Wait;
// any context may Signal or TryWait. Signal hands a token directly to the
// most urgent waiter, rather than incrementing the count.
type Semaphore struct {
	k        *Kernel
	waitSet  PrioSet
	count    uint16
	maxCount uint16
}

// NewSemaphore creates a semaphore holding count tokens, at most maxCount.
func (k *Kernel) NewSemaphore(count, maxCount uint16) *Semaphore {
	if maxCount == 0 || count > maxCount {
		k.raise(&AssertionError{Module: "sem", Location: 100})
	}
	return &Semaphore{k: k, count: count, maxCount: maxCount}
}

// Wait takes a token, blocking the calling thread for up to nTicks ticks
// ([NoTimeout] waits forever) if none is available. It reports whether a
// token was taken, i.e. false on timeout.
func (s *Semaphore) Wait(nTicks uint32) bool {
	k := s.k
	c := k.enter()
	x := k.curr
	k.blockable(x, c)
	if s.count > 0 {
		s.count--
		k.emit(TraceRecord{Kind: TraceSemWait, Prio: x.pprio, Ctr: uint32(s.count)})
		k.mu.Unlock()
		return true
	}

	s.waitSet.Insert(x.prio)
	k.emit(TraceRecord{Kind: TraceSemBlock, Prio: x.prio, Ctr: nTicks})
	k.block(x, waitSem, s, nTicks)
	x.waitOn = waitNone

	// both Signal and the timeout remove the waiter
	if s.waitSet.Has(x.prio) {
		k.fail("sem", 200)
	}
	signaled := !x.timedOut
	k.mu.Unlock()
	return signaled
}

// TryWait takes a token if one is available, without blocking.
func (s *Semaphore) TryWait() bool {
	k := s.k
	k.mu.Lock()
	ok := s.count > 0
	if ok {
		s.count--
		k.emit(TraceRecord{Kind: TraceSemWait, Prio: k.currPrio(), Ctr: uint32(s.count)})
	} else {
		k.emit(TraceRecord{Kind: TraceSemWaitAttempt, Prio: k.currPrio()})
	}
	k.mu.Unlock()
	return ok
}

// Signal wakes the most urgent waiter, handing it the token, or else adds a
// token. It returns false, changing nothing, if the count is already at its
// maximum. Waking a thread may preempt the caller.
func (s *Semaphore) Signal() bool {
	k := s.k
	c := k.enter()
	if p := s.waitSet.FindMax(); p != 0 {
		s.waitSet.Remove(p)
		a := k.registry[p]
		if a == nil || a.x == nil || a.x.waitObj != s {
			k.fail("sem", 300)
		}
		k.unblock(a.x)
		k.emit(TraceRecord{Kind: TraceSemSignal, Prio: a.x.pprio, Ctr: uint32(s.count)})
		k.leave(c)
		return true
	}
	if s.count == s.maxCount {
		k.leave(c)
		k.warnLimited(warnSemSaturated, 0).
			Int("max", int(s.maxCount)).
			Log("semaphore saturated")
		return false
	}
	s.count++
	k.emit(TraceRecord{Kind: TraceSemSignal, Ctr: uint32(s.count)})
	k.leave(c)
	return true
}

// Count returns the number of available tokens.
func (s *Semaphore) Count() uint16 {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.count
}
