package aokernel

import (
	"context"
	"time"
)

// Run ticks rate 0 at the configured period (see [WithTickPeriod]) until
// ctx is done, returning its error. Scheduling happens on whichever
// goroutine posts or ticks while the CPU is free, so Run is only needed to
// drive time events.
func (k *Kernel) Run(ctx context.Context) error {
	if !k.running.CompareAndSwap(false, true) {
		return ErrKernelRunning
	}
	defer k.running.Store(false)

	k.log.Info().
		Dur("tick_period", k.tickPeriod).
		Log("kernel running")

	ticker := time.NewTicker(k.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.log.Info().
				Err(ctx.Err()).
				Log("kernel stopped")
			return ctx.Err()
		case <-ticker.C:
			k.Tick(0)
		}
	}
}
