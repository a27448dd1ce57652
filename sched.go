package aokernel

import (
	"time"
)

// SchedStatus is returned by [Kernel.SchedLock], to be passed back to
// [Kernel.SchedUnlock].
type SchedStatus uint16

// schedUnlocked marks a SchedLock call that did not raise the ceiling.
const schedUnlocked SchedStatus = 0xFFFF

// nextPrio returns the priority that should run: the highest ready one,
// unless that is at or below the lock ceiling, in which case the lock
// holder runs.
func (k *Kernel) nextPrio() Priority {
	p := k.readySet.FindMax()
	if p <= k.lockCeil {
		p = k.lockHolder
	}
	return p
}

// activate runs every ready thread above the current basic-thread priority,
// on the main context. Basic threads are dispatched one event at a time,
// nested within the caller, while extended threads are switched to. Called
// and returns with the critical section held.
func (k *Kernel) activate() {
	pin := k.actPrio
	for {
		p := k.nextPrio()
		if p <= pin {
			return
		}
		a := k.registry[p]
		if a == nil {
			k.fail("sched", 100)
		}
		if a.x != nil {
			k.switchTo(nil, a.x)
			continue
		}

		k.actPrio = p
		e := a.eQueue.pop()
		k.emit(TraceRecord{Kind: TraceDispatch, Prio: p, Sig: e.Sig, RefCtr: e.refCtr, NFree: a.eQueue.nFree})
		ceil := k.lockCeil
		var start time.Time
		if k.metrics != nil {
			start = time.Now()
		}
		k.mu.Unlock()

		a.h.Dispatch(e)

		k.mu.Lock()
		if k.lockCeil != ceil {
			// scheduler lock leaked past the end of the step
			k.fail("sched", 110)
		}
		if k.metrics != nil {
			k.metrics.recordDispatch(time.Since(start))
		}
		k.gcLocked(e)
		if a.eQueue.empty() {
			k.readySet.Remove(p)
		}
		k.actPrio = pin
	}
}

// schedX yields the CPU from extended thread x until x is once again the
// thread that should run. Called and returns with the critical section held.
func (k *Kernel) schedX(x *XThread) {
	for {
		p := k.nextPrio()
		if p == x.prio {
			return
		}
		var next *XThread
		if p != 0 {
			a := k.registry[p]
			if a == nil {
				k.fail("sched", 120)
			}
			next = a.x
		}
		k.switchTo(x, next)
	}
}

// switchTo hands the CPU from one context to another, where nil is the main
// context, then waits to be handed it back. Called and returns with the
// critical section held.
func (k *Kernel) switchTo(from, to *XThread) {
	k.curr = to
	k.emit(TraceRecord{Kind: TraceContextSwitch, Prio: to.priority(), Other: from.priority()})
	if k.metrics != nil {
		k.metrics.contextSwitches++
	}
	k.mu.Unlock()
	if to == nil {
		k.mainResume <- struct{}{}
	} else {
		to.resume <- struct{}{}
	}
	if from == nil {
		<-k.mainResume
	} else {
		<-from.resume
	}
	k.mu.Lock()
	if from == nil {
		k.cpuGID = k.mainGID
	} else {
		k.cpuGID = from.gid
	}
}

// SchedLock raises the scheduler lock ceiling, so that no thread with a
// priority at or below ceiling preempts the caller, which need not block
// anything above it. It must be called by the running thread, and the
// result passed to SchedUnlock, in strict nesting order. Extended threads
// may not block while holding a scheduler lock.
func (k *Kernel) SchedLock(ceiling Priority) SchedStatus {
	c := k.enter()
	if c != ctxThread {
		k.fail("sched", 200)
	}
	stat := schedUnlocked
	if ceiling > k.lockCeil {
		stat = SchedStatus(k.lockCeil)<<8 | SchedStatus(k.lockHolder)
		k.lockCeil = ceiling
		k.lockHolder = k.currPrio()
		k.emit(TraceRecord{Kind: TraceSchedLock, Prio: k.lockHolder, Other: ceiling})
	}
	k.mu.Unlock()
	return stat
}

// SchedUnlock restores the lock ceiling saved by SchedLock, and reschedules.
func (k *Kernel) SchedUnlock(stat SchedStatus) {
	if stat == schedUnlocked {
		return
	}
	c := k.enter()
	if c != ctxThread {
		k.fail("sched", 210)
	}
	prevCeil := Priority(stat >> 8)
	if k.lockCeil <= prevCeil || k.lockHolder != k.currPrio() {
		k.fail("sched", 211)
	}
	k.emit(TraceRecord{Kind: TraceSchedUnlock, Prio: k.lockHolder, Other: prevCeil})
	k.lockCeil = prevCeil
	k.lockHolder = Priority(stat)
	k.leave(c)
}
