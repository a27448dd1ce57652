package aokernel

import (
	"github.com/joeycumines/logiface"
)

// warnKind is the category of a rate limited warning.
type warnKind uint8

const (
	warnPostRefused warnKind = iota
	warnPoolExhausted
	warnSemSaturated
)

func (w warnKind) String() string {
	switch w {
	case warnPostRefused:
		return "post_refused"
	case warnPoolExhausted:
		return "pool_exhausted"
	case warnSemSaturated:
		return "sem_saturated"
	default:
		return "unknown"
	}
}

type warnCategory struct {
	kind warnKind
	prio Priority
}

// warnLimited returns a warning builder, or nil if logging is disabled or
// the category (kind, and priority where relevant) is rate limited. Must
// not be called inside the critical section.
func (k *Kernel) warnLimited(kind warnKind, prio Priority) *logiface.Builder[logiface.Event] {
	b := k.log.Warning()
	if !b.Enabled() {
		return nil
	}
	if _, ok := k.warnLimiter.Allow(warnCategory{kind, prio}); !ok {
		b.Release()
		return nil
	}
	b = b.Str("category", kind.String())
	if prio != 0 {
		b = b.Int("prio", int(prio))
	}
	return b
}
