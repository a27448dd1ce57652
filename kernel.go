package aokernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-aokernel/internal/gid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// callerCtx classifies the goroutine entering the kernel.
type callerCtx uint8

const (
	// ctxInterrupt is any goroutine other than the CPU holder, while the CPU
	// is held. It may only mutate state; the holder reschedules at its next
	// scheduling point.
	ctxInterrupt callerCtx = iota
	// ctxThread is the goroutine that holds the CPU.
	ctxThread
	// ctxIdle is a goroutine that found the CPU free and claimed it, for the
	// duration of the call.
	ctxIdle
)

// Kernel is a single-core, priority-based scheduler for active objects and
// extended threads. All of its state is owned by the instance.
//
// Exactly one goroutine holds the (logical) CPU at any time. Basic threads
// run to completion on the "main context", which is whichever goroutine
// claimed the idle CPU, and extended threads run on goroutines of their own
// that the kernel hands the CPU to and from. Calls from any other goroutine
// behave like interrupts: they update the kernel's state, and preemption
// takes effect at the next scheduling point of the running thread.
type Kernel struct {
	// betteralign:ignore

	mu sync.Mutex

	// CPU baton
	cpuGID     uint64
	mainGID    uint64
	mainResume chan struct{}
	curr       *XThread

	readySet   PrioSet
	reserved   PrioSet
	actPrio    Priority
	lockCeil   Priority
	lockHolder Priority

	registry    []*Active
	pools       []*eventPool
	subscribers []PrioSet
	timers      timerArena

	id            uuid.UUID
	log           *logiface.Logger[logiface.Event]
	warnLimiter   *catrate.Limiter
	sink          TraceSink
	assertHandler AssertHandler
	metrics       *kernelMetrics
	traceSeq      uint64
	tickPeriod    time.Duration
	running       atomic.Bool
}

// New creates a kernel. Pools, registry and time event slots are allocated
// here, and never grow.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveKernelOptions(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		mainResume:    make(chan struct{}, 1),
		registry:      make([]*Active, cfg.maxActive+1),
		subscribers:   make([]PrioSet, cfg.maxSignal),
		id:            uuid.New(),
		warnLimiter:   catrate.NewLimiter(cfg.warnRates),
		sink:          cfg.traceSink,
		assertHandler: cfg.assertHandler,
		tickPeriod:    cfg.tickPeriod,
	}
	if k.assertHandler == nil {
		k.assertHandler = defaultAssertHandler
	}
	k.log = cfg.logger.Clone().
		Str("kernel", k.id.String()).
		Logger()
	if cfg.metrics {
		k.metrics = newKernelMetrics()
	}
	k.timers.init(cfg.maxTickRate, cfg.maxTimeEvents)
	for i, p := range cfg.pools {
		k.pools = append(k.pools, newEventPool(uint8(i+1), p.blockSize, p.count))
		k.log.Info().
			Int("pool", i+1).
			Int("block_size", p.blockSize).
			Int("count", p.count).
			Log("event pool ready")
	}

	return k, nil
}

// ID returns the unique id of the kernel instance, included in its logs.
func (k *Kernel) ID() uuid.UUID { return k.id }

// MaxActive returns the highest usable priority.
func (k *Kernel) MaxActive() Priority { return Priority(len(k.registry) - 1) }

// enter acquires the critical section and classifies the caller. A caller
// that finds the CPU free claims it as the main context.
func (k *Kernel) enter() callerCtx {
	g := gid.Get()
	k.mu.Lock()
	switch k.cpuGID {
	case g:
		return ctxThread
	case 0:
		k.cpuGID = g
		k.mainGID = g
		return ctxIdle
	default:
		return ctxInterrupt
	}
}

// leave runs the scheduler as appropriate for the caller, then releases the
// critical section. An idle caller only returns once nothing is ready, and
// releases the CPU under the same lock hold, so no wakeup is lost.
func (k *Kernel) leave(c callerCtx) {
	switch c {
	case ctxThread:
		if k.curr != nil {
			k.schedX(k.curr)
		} else {
			k.activate()
		}
	case ctxIdle:
		k.activate()
		k.cpuGID = 0
		k.mainGID = 0
	}
	k.mu.Unlock()
}

// currPrio returns the priority of the running thread, 0 for idle.
func (k *Kernel) currPrio() Priority {
	if k.curr != nil {
		return k.curr.prio
	}
	return k.actPrio
}

// register assigns p to a, which must be free and not reserved.
func (k *Kernel) register(a *Active, p Priority) {
	if p == 0 || int(p) >= len(k.registry) {
		k.fail("active", 100)
	}
	if k.registry[p] != nil || k.reserved.Has(p) {
		k.fail("active", 101)
	}
	k.registry[p] = a
	a.prio = p
	a.pprio = p
	k.emit(TraceRecord{Kind: TraceActiveAdd, Prio: p})
}

func (k *Kernel) unregister(a *Active) {
	p := a.pprio
	if p == 0 || k.registry[p] != a {
		k.fail("active", 110)
	}
	k.registry[p] = nil
	a.prio = 0
	a.pprio = 0
	k.emit(TraceRecord{Kind: TraceActiveRemove, Prio: p})
}

// reserve claims p for a mutex ceiling.
func (k *Kernel) reserve(p Priority) {
	if p == 0 || int(p) >= len(k.registry) {
		k.fail("mutex", 100)
	}
	if k.registry[p] != nil || k.reserved.Has(p) {
		k.fail("mutex", 101)
	}
	k.reserved.Insert(p)
}

// fail raises a contract violation. The critical section must be held; it
// is released before the assert handler runs.
func (k *Kernel) fail(module string, location int) {
	err := &AssertionError{Module: module, Location: location}
	k.emit(TraceRecord{Kind: TraceAssert})
	k.mu.Unlock()
	k.raise(err)
}

func (k *Kernel) raise(err *AssertionError) {
	k.log.Crit().
		Str("module", err.Module).
		Int("location", err.Location).
		Log("assertion failed")
	k.assertHandler(err)
	panic(err)
}
