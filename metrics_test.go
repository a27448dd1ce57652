package aokernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernel_Metrics(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	k, _ := newTestKernel(t, WithMetrics(true))
	a := k.NewActive(HandlerFuncs{DispatchFunc: func(e *Event) {
		time.Sleep(time.Duration(e.Sig) * time.Microsecond)
	}})
	a.Start(2, 3, nil)
	x := newTestXThread(t, k, func(x *XThread) {
		x.Delay(1)
	})
	x.Start(5, 0)

	const n = 50
	for i := range n {
		a.Post(&Event{Sig: UserSig + Signal(i)}, 0)
	}
	k.Tick(0)

	m := k.Metrics()
	assert.Equal(t, uint64(n), m.Dispatches)
	assert.Equal(t, n, m.Latency.Count)
	assert.Positive(t, m.Latency.Max)
	for _, p := range [...]time.Duration{m.Latency.P50, m.Latency.P90, m.Latency.P99} {
		assert.Positive(t, p)
		assert.LessOrEqual(t, p, m.Latency.Max)
	}
	assert.Positive(t, m.Latency.Mean)
	// main to x, x to main, main to x, exit to main
	assert.Equal(t, uint64(4), m.ContextSwitches)
	assert.Zero(t, m.Ready)

	require.Len(t, m.Queues, 1)
	assert.Equal(t, QueueStats{Prio: 2, Cap: 4, NFree: 4, NMin: 3}, m.Queues[0])
	require.Len(t, m.Pools, 2)
	assert.Equal(t, PoolStats{BlockSize: 16, NTotal: 4, NFree: 4, NMin: 4}, m.Pools[0])
}

func TestKernel_Metrics_disabled(t *testing.T) {
	k, _ := newTestKernel(t)
	a := k.NewActive(HandlerFuncs{})
	a.Start(1, 0, nil)
	a.Post(&Event{Sig: UserSig}, 0)
	m := k.Metrics()
	assert.Zero(t, m.Dispatches)
	assert.Equal(t, LatencyMetrics{}, m.Latency)
	assert.Len(t, m.Queues, 1)
}

func TestKernel_Metrics_boostedThreadListedOnce(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	k, _ := newTestKernel(t)
	m := k.NewMutex(9)
	var queues []QueueStats
	x := newTestXThread(t, k, func(x *XThread) {
		m.Lock(NoTimeout)
		queues = k.Metrics().Queues
		m.Unlock()
	})
	x.Start(3, 0)
	require.Len(t, queues, 1)
	assert.Equal(t, Priority(3), queues[0].Prio)
}

func TestQuantile(t *testing.T) {
	q := newQuantile(0.5)
	assert.Zero(t, q.value())
	for i := 1; i <= 3; i++ {
		q.observe(float64(i))
	}
	assert.Equal(t, 2.0, q.value())
	for i := 4; i <= 1001; i++ {
		q.observe(float64(i))
	}
	assert.InDelta(t, 500, q.value(), 25)

	q = newQuantile(0.99)
	for i := 1000; i >= 1; i-- {
		q.observe(float64(i))
	}
	assert.InDelta(t, 990, q.value(), 20)
}
