package aokernel

// Mutex is a recursive mutual exclusion lock for extended threads, with an
// optional priority ceiling. While held, a mutex with a ceiling raises its
// holder to the ceiling priority, so no thread that may contend for it can
// preempt the holder. The ceiling must therefore be above the priority of
// every thread that uses it.
//
// Waiters are served in priority order, and unlock hands the mutex directly
// to the most urgent one.
type Mutex struct {
	k          *Kernel
	holder     *XThread
	waitSet    PrioSet
	ceiling    Priority
	holderPrio Priority
	nesting    uint8
}

// NewMutex creates a mutex. A non-zero ceiling reserves that priority, which
// no active object may then use. A zero ceiling disables boosting.
func (k *Kernel) NewMutex(ceiling Priority) *Mutex {
	m := &Mutex{k: k, ceiling: ceiling}
	if ceiling != 0 {
		k.mu.Lock()
		k.reserve(ceiling)
		k.mu.Unlock()
	}
	return m
}

// Lock acquires the mutex, blocking the calling thread for up to nTicks
// ticks ([NoTimeout] waits forever) while another thread holds it. The
// holder may lock again without blocking. It reports whether the mutex was
// acquired.
func (m *Mutex) Lock(nTicks uint32) bool {
	k := m.k
	c := k.enter()
	x := k.curr
	k.blockable(x, c)
	if m.ceiling != 0 && x.prio >= m.ceiling && m.holder != x {
		k.fail("mutex", 200)
	}

	switch m.holder {
	case nil:
		m.acquire(x)
		k.emit(TraceRecord{Kind: TraceMutexLock, Prio: x.pprio, Other: m.ceiling})
		k.mu.Unlock()
		return true
	case x:
		if m.nesting == ^uint8(0) {
			k.fail("mutex", 210)
		}
		m.nesting++
		k.mu.Unlock()
		return true
	}

	m.waitSet.Insert(x.prio)
	k.emit(TraceRecord{Kind: TraceMutexBlock, Prio: x.prio, Other: m.holder.pprio})
	k.block(x, waitMutex, m, nTicks)
	x.waitOn = waitNone

	// both Unlock and the timeout remove the waiter
	locked := m.holder == x
	if locked == x.timedOut || m.waitSet.Has(x.prio) {
		k.fail("mutex", 220)
	}
	k.mu.Unlock()
	return locked
}

// TryLock acquires the mutex if it is free or already held by the calling
// thread, without blocking.
func (m *Mutex) TryLock() bool {
	k := m.k
	c := k.enter()
	x := k.curr
	k.blockable(x, c)
	if m.ceiling != 0 && x.prio >= m.ceiling && m.holder != x {
		k.fail("mutex", 300)
	}
	var locked bool
	switch m.holder {
	case nil:
		m.acquire(x)
		k.emit(TraceRecord{Kind: TraceMutexLock, Prio: x.pprio, Other: m.ceiling})
		locked = true
	case x:
		if m.nesting == ^uint8(0) {
			k.fail("mutex", 310)
		}
		m.nesting++
		locked = true
	default:
		k.emit(TraceRecord{Kind: TraceMutexLockAttempt, Prio: x.pprio, Other: m.holder.pprio})
	}
	k.mu.Unlock()
	return locked
}

// acquire makes x the holder, boosting it to the ceiling. x is either
// running, and so ready, or a waiter being handed the mutex.
func (m *Mutex) acquire(x *XThread) {
	k := m.k
	m.holder = x
	m.nesting = 1
	m.holderPrio = x.prio
	if m.ceiling == 0 {
		return
	}
	if k.readySet.Has(x.prio) {
		k.readySet.Remove(x.prio)
		k.readySet.Insert(m.ceiling)
	}
	k.registry[m.ceiling] = &x.Active
	x.prio = m.ceiling
}

// Unlock releases one level of nesting. Releasing the last level restores
// the holder's priority and hands the mutex to the most urgent waiter, if
// any, which may preempt the caller. Unlocking a mutex the caller does not
// hold is a contract violation.
func (m *Mutex) Unlock() {
	k := m.k
	c := k.enter()
	x := k.curr
	if c != ctxThread || x == nil || m.holder != x {
		k.fail("mutex", 400)
	}
	if m.nesting > 1 {
		m.nesting--
		k.mu.Unlock()
		return
	}

	if m.ceiling != 0 {
		if x.prio != m.ceiling {
			// mutexes with ceilings must be released in reverse order
			k.fail("mutex", 410)
		}
		k.readySet.Remove(m.ceiling)
		k.registry[m.ceiling] = nil
		x.prio = m.holderPrio
		k.readySet.Insert(x.prio)
	}
	m.holder = nil
	m.nesting = 0
	k.emit(TraceRecord{Kind: TraceMutexUnlock, Prio: x.pprio, Other: m.ceiling})

	if p := m.waitSet.FindMax(); p != 0 {
		m.waitSet.Remove(p)
		a := k.registry[p]
		if a == nil || a.x == nil || a.x.waitObj != m {
			k.fail("mutex", 420)
		}
		w := a.x
		k.disarmLocked(&w.timeEvt)
		w.waitOn = waitNone
		m.acquire(w)
		k.readySet.Insert(w.prio)
		k.emit(TraceRecord{Kind: TraceMutexLock, Prio: w.pprio, Other: m.ceiling})
	}
	k.leave(c)
}

// Holder returns the base priority of the holding thread, or 0.
func (m *Mutex) Holder() Priority {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	if m.holder == nil {
		return 0
	}
	return m.holder.pprio
}
