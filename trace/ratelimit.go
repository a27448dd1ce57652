package trace

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/go-catrate"
)

// RateLimit forwards records to another sink, limiting each kind of record
// to the configured rates, e.g. {time.Second: 100} for at most 100 posts,
// 100 ticks, etc., per second. Records over the limit are dropped.
type RateLimit struct {
	next       aokernel.TraceSink
	limiter    *catrate.Limiter
	suppressed atomic.Uint64
}

var _ aokernel.TraceSink = (*RateLimit)(nil)

// NewRateLimit returns a rate limited sink, forwarding to next.
func NewRateLimit(next aokernel.TraceSink, rates map[time.Duration]int) *RateLimit {
	if next == nil {
		panic(`trace: nil sink`)
	}
	return &RateLimit{
		next:    next,
		limiter: catrate.NewLimiter(rates),
	}
}

// Emit implements [aokernel.TraceSink].
func (x *RateLimit) Emit(rec aokernel.TraceRecord) {
	if _, ok := x.limiter.Allow(rec.Kind); !ok {
		x.suppressed.Add(1)
		return
	}
	x.next.Emit(rec)
}

// Suppressed returns the number of records dropped by the limit.
func (x *RateLimit) Suppressed() uint64 {
	return x.suppressed.Load()
}
