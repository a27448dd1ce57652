package aokernel

import (
	"time"
)

// TraceKind identifies the kernel activity a [TraceRecord] describes.
type TraceKind uint8

const (
	TraceActiveAdd TraceKind = iota + 1
	TraceActiveRemove
	TracePost
	TracePostAttempt
	TracePostLIFO
	TraceDispatch
	TraceDefer
	TraceRecall
	TraceQueuePost
	TraceQueuePostAttempt
	TraceQueuePostLIFO
	TraceQueueGet
	TraceEventNew
	TraceEventNewAttempt
	TraceEventGC
	TraceEventGCAttempt
	TracePublish
	TraceSubscribe
	TraceUnsubscribe
	TraceContextSwitch
	TraceSchedLock
	TraceSchedUnlock
	TraceBlock
	TraceUnblock
	TraceTimeout
	TraceMutexLock
	TraceMutexLockAttempt
	TraceMutexBlock
	TraceMutexUnlock
	TraceSemWait
	TraceSemWaitAttempt
	TraceSemBlock
	TraceSemSignal
	TraceTimeArm
	TraceTimeDisarm
	TraceTimePost
	TraceTick
	TraceAssert
	traceKindEnd
)

var traceKindNames = [...]string{
	TraceActiveAdd:        "active_add",
	TraceActiveRemove:     "active_remove",
	TracePost:             "post",
	TracePostAttempt:      "post_attempt",
	TracePostLIFO:         "post_lifo",
	TraceDispatch:         "dispatch",
	TraceDefer:            "defer",
	TraceRecall:           "recall",
	TraceQueuePost:        "queue_post",
	TraceQueuePostAttempt: "queue_post_attempt",
	TraceQueuePostLIFO:    "queue_post_lifo",
	TraceQueueGet:         "queue_get",
	TraceEventNew:         "event_new",
	TraceEventNewAttempt:  "event_new_attempt",
	TraceEventGC:          "event_gc",
	TraceEventGCAttempt:   "event_gc_attempt",
	TracePublish:          "publish",
	TraceSubscribe:        "subscribe",
	TraceUnsubscribe:      "unsubscribe",
	TraceContextSwitch:    "context_switch",
	TraceSchedLock:        "sched_lock",
	TraceSchedUnlock:      "sched_unlock",
	TraceBlock:            "block",
	TraceUnblock:          "unblock",
	TraceTimeout:          "timeout",
	TraceMutexLock:        "mutex_lock",
	TraceMutexLockAttempt: "mutex_lock_attempt",
	TraceMutexBlock:       "mutex_block",
	TraceMutexUnlock:      "mutex_unlock",
	TraceSemWait:          "sem_wait",
	TraceSemWaitAttempt:   "sem_wait_attempt",
	TraceSemBlock:         "sem_block",
	TraceSemSignal:        "sem_signal",
	TraceTimeArm:          "time_arm",
	TraceTimeDisarm:       "time_disarm",
	TraceTimePost:         "time_post",
	TraceTick:             "tick",
	TraceAssert:           "assert",
}

// String returns the snake_case name of the kind.
func (k TraceKind) String() string {
	if k > 0 && k < traceKindEnd {
		return traceKindNames[k]
	}
	return "unknown"
}

// TraceRecord describes one kernel activity. Fields that do not apply to
// the Kind are zero.
type TraceRecord struct {
	Time time.Time
	Seq  uint64
	// Ctr is a tick count, or a semaphore or subscriber count.
	Ctr  uint32
	Sig  Signal
	Kind TraceKind
	// Prio is the thread acted on.
	Prio Priority
	// Other is a second priority, e.g. the ceiling of a lock, or the
	// thread switched away from.
	Other  Priority
	RefCtr uint8
	PoolID uint8
	Rate   uint8
	NFree  uint16
	NMin   uint16
}

// TraceSink receives trace records. Emit is called inside the kernel's
// critical section: it must not block, and must not call the kernel.
type TraceSink interface {
	Emit(rec TraceRecord)
}

// TraceSinkFunc adapts a function to a [TraceSink].
type TraceSinkFunc func(rec TraceRecord)

// Emit implements [TraceSink].
func (f TraceSinkFunc) Emit(rec TraceRecord) { f(rec) }

func (k *Kernel) emit(rec TraceRecord) {
	if k.sink == nil {
		return
	}
	k.traceSeq++
	rec.Seq = k.traceSeq
	rec.Time = time.Now()
	k.sink.Emit(rec)
}
