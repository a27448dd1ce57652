package aokernel

const nilIdx int32 = -1

// timerArena stores every time event of a kernel in fixed slots, linked by
// index into two singly linked lists per tick rate: the main list walked by
// Tick, and a list of freshly armed entries, spliced into the main list at
// the start of each Tick.
type timerArena struct {
	slots []*TimeEvent
	next  []int32
	heads []int32
	fresh []int32
	used  int
}

func (t *timerArena) init(rates, n int) {
	t.slots = make([]*TimeEvent, n)
	t.next = make([]int32, n)
	t.heads = make([]int32, rates)
	t.fresh = make([]int32, rates)
	for i := range t.heads {
		t.heads[i] = nilIdx
		t.fresh[i] = nilIdx
	}
}

func (t *timerArena) alloc(te *TimeEvent) bool {
	if t.used == len(t.slots) {
		return false
	}
	te.idx = int32(t.used)
	t.slots[t.used] = te
	t.next[t.used] = nilIdx
	t.used++
	return true
}

// TimeEvent posts its own (static) event to an active object after a number
// of ticks of one tick rate, either once or periodically.
type TimeEvent struct {
	evt         Event
	k           *Kernel
	act         *Active
	ctr         uint32
	interval    uint32
	idx         int32
	rate        uint8
	linked      bool
	wasDisarmed bool
}

// NewTimeEvent creates a disarmed time event, which will post an event with
// signal sig to a, counting ticks of the given rate. It uses one of the
// kernel's time event slots, for the life of the kernel.
func (k *Kernel) NewTimeEvent(a *Active, sig Signal, rate uint8) (*TimeEvent, error) {
	te := &TimeEvent{k: k, act: a, rate: rate}
	te.evt.Sig = sig
	k.mu.Lock()
	if a == nil || sig < UserSig || int(rate) >= len(k.timers.heads) {
		k.fail("timeevt", 100)
	}
	ok := k.timers.alloc(te)
	k.mu.Unlock()
	if !ok {
		return nil, ErrTimeEventLimit
	}
	return te, nil
}

// Event returns the event posted on expiry, e.g. to compare against the
// event being dispatched.
func (te *TimeEvent) Event() *Event { return &te.evt }

// Arm starts the countdown. The event fires after nTicks ticks, then every
// interval ticks if interval is not 0. Arming an armed time event, or with
// zero ticks, is a contract violation.
func (te *TimeEvent) Arm(nTicks, interval uint32) {
	k := te.k
	k.mu.Lock()
	if nTicks == 0 || te.ctr != 0 {
		k.fail("timeevt", 200)
	}
	te.interval = interval
	te.wasDisarmed = false
	k.armLocked(te, nTicks)
	k.mu.Unlock()
}

func (k *Kernel) armLocked(te *TimeEvent, nTicks uint32) {
	te.ctr = nTicks
	if !te.linked {
		te.linked = true
		t := &k.timers
		t.next[te.idx] = t.fresh[te.rate]
		t.fresh[te.rate] = te.idx
	}
	k.emit(TraceRecord{Kind: TraceTimeArm, Prio: te.act.pprio, Sig: te.evt.Sig, Ctr: nTicks, Rate: te.rate})
}

// Disarm stops the countdown, reporting whether the time event was armed.
// A disarmed one-shot time event that returns false has already fired.
func (te *TimeEvent) Disarm() bool {
	k := te.k
	k.mu.Lock()
	wasArmed := k.disarmLocked(te)
	k.mu.Unlock()
	return wasArmed
}

// disarmLocked zeroes the counter; the entry is unlinked by the next Tick.
func (k *Kernel) disarmLocked(te *TimeEvent) bool {
	if te.ctr == 0 {
		te.wasDisarmed = false
		return false
	}
	te.ctr = 0
	te.wasDisarmed = true
	k.emit(TraceRecord{Kind: TraceTimeDisarm, Prio: te.act.pprio, Sig: te.evt.Sig, Rate: te.rate})
	return true
}

// Rearm restarts the countdown at nTicks, keeping the interval, whether or
// not the time event is armed. It reports whether it was armed.
func (te *TimeEvent) Rearm(nTicks uint32) bool {
	k := te.k
	k.mu.Lock()
	if nTicks == 0 {
		k.fail("timeevt", 300)
	}
	wasArmed := te.ctr != 0
	k.armLocked(te, nTicks)
	k.mu.Unlock()
	return wasArmed
}

// WasDisarmed reports whether the last Disarm call stopped an armed time
// event, then marks it as disarmed, so that a later call returns true until
// the next Arm.
func (te *TimeEvent) WasDisarmed() bool {
	k := te.k
	k.mu.Lock()
	was := te.wasDisarmed
	te.wasDisarmed = true
	k.mu.Unlock()
	return was
}

// CurrCtr returns the number of ticks until the time event fires, or 0 if
// disarmed.
func (te *TimeEvent) CurrCtr() uint32 {
	k := te.k
	k.mu.Lock()
	defer k.mu.Unlock()
	return te.ctr
}

// Tick processes one tick of the given rate, posting the events of every
// time event that expires, then reschedules.
func (k *Kernel) Tick(rate uint8) {
	c := k.enter()
	if int(rate) >= len(k.timers.heads) {
		k.fail("timeevt", 400)
	}
	k.emit(TraceRecord{Kind: TraceTick, Rate: rate})
	k.tickLocked(rate)
	k.leave(c)
}

func (k *Kernel) tickLocked(rate uint8) {
	t := &k.timers

	if f := t.fresh[rate]; f != nilIdx {
		last := f
		for t.next[last] != nilIdx {
			last = t.next[last]
		}
		t.next[last] = t.heads[rate]
		t.heads[rate] = f
		t.fresh[rate] = nilIdx
	}

	prev := nilIdx
	for i := t.heads[rate]; i != nilIdx; {
		te := t.slots[i]
		next := t.next[i]
		unlink := te.ctr == 0
		if !unlink {
			te.ctr--
			if te.ctr == 0 {
				if te.interval != 0 {
					te.ctr = te.interval
				} else {
					unlink = true
				}
				k.emit(TraceRecord{Kind: TraceTimePost, Prio: te.act.pprio, Sig: te.evt.Sig, Rate: rate})
				k.expire(te)
			}
		}
		if unlink {
			if prev == nilIdx {
				t.heads[rate] = next
			} else {
				t.next[prev] = next
			}
			t.next[i] = nilIdx
			te.linked = false
		} else {
			prev = i
		}
		i = next
	}
}

// expire delivers a time event: extended thread timeouts (reserved
// signals) unblock the thread, everything else is posted.
func (k *Kernel) expire(te *TimeEvent) {
	if x := te.act.x; x != nil && te.evt.Sig < UserSig {
		k.threadTimeout(x)
		return
	}
	k.postLocked(te.act, &te.evt, NoMargin)
}

// NoActiveTimeEvents reports whether no time event of the given rate is
// linked, e.g. to decide whether the tick source may be suspended.
func (k *Kernel) NoActiveTimeEvents(rate uint8) bool {
	k.mu.Lock()
	if int(rate) >= len(k.timers.heads) {
		k.fail("timeevt", 500)
	}
	inactive := k.timers.heads[rate] == nilIdx && k.timers.fresh[rate] == nilIdx
	k.mu.Unlock()
	return inactive
}
