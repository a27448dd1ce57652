package aokernel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-microbatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_Post(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	k, rec := newTestKernel(t)
	var sum atomic.Int64
	a := k.NewActive(HandlerFuncs{DispatchFunc: func(e *Event) {
		sum.Add(int64(e.Payload[0]))
	}})
	a.Start(1, 16, nil)

	b := k.NewBridge(&microbatch.BatcherConfig{MaxSize: 8, FlushInterval: time.Millisecond})
	defer b.Close()

	const n = 40
	var wg sync.WaitGroup
	var failed atomic.Int64
	for i := range n {
		wg.Go(func() {
			e := &Event{Sig: UserSig, Payload: []byte{byte(i)}}
			ok, err := b.Post(context.Background(), a, e, NoMargin)
			if err != nil || !ok {
				failed.Add(1)
			}
		})
	}
	wg.Wait()
	require.NoError(t, b.Shutdown(context.Background()))

	assert.Zero(t, failed.Load())
	assert.Equal(t, int64(n*(n-1)/2), sum.Load())
	assert.Len(t, rec.filter(TraceDispatch), n)
}

func TestBridge_Post_refused(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	k, _ := newTestKernel(t)
	release := make(chan struct{})
	a := k.NewActive(HandlerFuncs{DispatchFunc: func(e *Event) {
		<-release
	}})
	a.Start(1, 0, nil)

	b := k.NewBridge(&microbatch.BatcherConfig{MaxSize: 2, FlushInterval: time.Hour})
	defer b.Close()

	// both posts join one batch: the first fills the queue, while the
	// second is refused, before anything is dispatched
	results := make(chan bool, 2)
	for range 2 {
		go func() {
			ok, err := b.Post(context.Background(), a, k.NewEvent(UserSig, 1), 0)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	time.Sleep(time.Millisecond * 50)
	close(release)
	got := []bool{<-results, <-results}
	assert.ElementsMatch(t, []bool{true, false}, got)
	assert.Equal(t, 4, poolFree(k, 1))
}

func TestBridge_Post_closed(t *testing.T) {
	k, _ := newTestKernel(t)
	a := k.NewActive(HandlerFuncs{})
	a.Start(1, 0, nil)
	b := k.NewBridge(nil)
	require.NoError(t, b.Close())
	ok, err := b.Post(context.Background(), a, k.NewEvent(UserSig, 1), 0)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, poolFree(k, 1))
}
