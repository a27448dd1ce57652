package aokernel

// Subscribe registers a to receive every event published with signal sig.
func (a *Active) Subscribe(sig Signal) {
	k := a.k
	k.mu.Lock()
	if !a.started || sig < UserSig || int(sig) >= len(k.subscribers) {
		k.fail("pubsub", 100)
	}
	k.subscribers[sig].Insert(a.pprio)
	k.emit(TraceRecord{Kind: TraceSubscribe, Prio: a.pprio, Sig: sig})
	k.mu.Unlock()
}

// Unsubscribe cancels a subscription made by Subscribe.
func (a *Active) Unsubscribe(sig Signal) {
	k := a.k
	k.mu.Lock()
	if !a.started || sig < UserSig || int(sig) >= len(k.subscribers) {
		k.fail("pubsub", 110)
	}
	k.subscribers[sig].Remove(a.pprio)
	k.emit(TraceRecord{Kind: TraceUnsubscribe, Prio: a.pprio, Sig: sig})
	k.mu.Unlock()
}

// UnsubscribeAll cancels every subscription of a.
func (a *Active) UnsubscribeAll() {
	k := a.k
	k.mu.Lock()
	if !a.started {
		k.fail("pubsub", 120)
	}
	k.unsubscribeAllLocked(a)
	k.mu.Unlock()
}

func (k *Kernel) unsubscribeAllLocked(a *Active) {
	for sig := int(UserSig); sig < len(k.subscribers); sig++ {
		if k.subscribers[sig].Has(a.pprio) {
			k.subscribers[sig].Remove(a.pprio)
			k.emit(TraceRecord{Kind: TraceUnsubscribe, Prio: a.pprio, Sig: Signal(sig)})
		}
	}
}

// Publish posts e to every subscriber of its signal, most urgent first. No
// subscriber runs until all of them have been posted to. Every post must
// succeed, as with [NoMargin]. An unsubscribed pooled event is recycled.
func (k *Kernel) Publish(e *Event) {
	c := k.enter()
	if int(e.Sig) >= len(k.subscribers) || e.Sig < UserSig {
		k.fail("pubsub", 200)
	}
	// held until every subscriber has its own reference
	k.retainLocked(e)
	subs := k.subscribers[e.Sig]
	k.emit(TraceRecord{Kind: TracePublish, Sig: e.Sig, RefCtr: e.refCtr, Ctr: uint32(subs.Len())})
	for p := subs.FindMax(); p != 0; p = subs.FindMax() {
		subs.Remove(p)
		a := k.registry[p]
		if a == nil {
			k.fail("pubsub", 210)
		}
		k.postLocked(a, e, NoMargin)
	}
	k.gcLocked(e)
	k.leave(c)
}
