package aokernel

import (
	"context"

	"github.com/joeycumines/go-microbatch"
)

// Bridge batches posts from goroutines outside the kernel, e.g. network
// handlers, so that each batch enters the kernel once, and is scheduled
// once. It must be closed when no longer needed.
type Bridge struct {
	k       *Kernel
	batcher *microbatch.Batcher[*bridgeJob]
}

type bridgeJob struct {
	a      *Active
	e      *Event
	margin uint16
	ok     bool
}

// NewBridge creates a [Bridge] for the kernel. The config may be nil, for
// the microbatch defaults.
func (k *Kernel) NewBridge(config *microbatch.BatcherConfig) *Bridge {
	b := &Bridge{k: k}
	b.batcher = microbatch.NewBatcher[*bridgeJob](config, b.process)
	return b
}

func (b *Bridge) process(_ context.Context, jobs []*bridgeJob) error {
	k := b.k
	c := k.enter()
	for _, job := range jobs {
		job.ok = k.postLocked(job.a, job.e, job.margin)
	}
	k.leave(c)
	return nil
}

// Post submits a post of e to a, as [Active.Post], and waits for the batch
// it joined to be posted, reporting the outcome. If the post cannot be
// submitted, or ctx is done first, an error is returned; in the former case
// e is recycled if unreferenced, and in the latter it may still be posted.
func (b *Bridge) Post(ctx context.Context, a *Active, e *Event, margin uint16) (bool, error) {
	res, err := b.batcher.Submit(ctx, &bridgeJob{a: a, e: e, margin: margin})
	if err != nil {
		b.k.mu.Lock()
		b.k.releaseUnreferenced(e)
		b.k.mu.Unlock()
		return false, err
	}
	if err := res.Wait(ctx); err != nil {
		return false, err
	}
	return res.Job.ok, nil
}

// Shutdown stops accepting posts, and waits for pending batches.
func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.batcher.Shutdown(ctx)
}

// Close stops accepting posts, and cancels batches not yet posted.
func (b *Bridge) Close() error {
	return b.batcher.Close()
}
