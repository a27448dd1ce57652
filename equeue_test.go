package aokernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(q *EventQueue) []Signal {
	var out []Signal
	for e := q.Get(); e != nil; e = q.Get() {
		out = append(out, e.Sig)
		q.k.GC(e)
	}
	return out
}

func TestEventQueue_fifo(t *testing.T) {
	k, _ := newTestKernel(t)
	q := k.NewEventQueue(3)
	assert.Equal(t, 4, q.Cap())
	assert.Equal(t, 4, q.NFree())
	assert.Nil(t, q.Get())

	for i := range 4 {
		require.True(t, q.Post(&Event{Sig: UserSig + Signal(i)}, 0))
	}
	assert.Zero(t, q.NFree())
	assert.False(t, q.Post(&Event{Sig: UserSig}, 0))
	assert.Equal(t, []Signal{UserSig, UserSig + 1, UserSig + 2, UserSig + 3}, drain(q))
	assert.Equal(t, 4, q.NFree())
	assert.Zero(t, q.NMin())
}

func TestEventQueue_wrapAround(t *testing.T) {
	k, _ := newTestKernel(t)
	q := k.NewEventQueue(2)
	var want, got []Signal
	next := UserSig
	for range 20 {
		for q.NFree() > 1 {
			require.True(t, q.Post(&Event{Sig: next}, 1))
			want = append(want, next)
			next++
		}
		e := q.Get()
		got = append(got, e.Sig)
	}
	got = append(got, drain(q)...)
	assert.Equal(t, want, got)
}

func TestEventQueue_lifo(t *testing.T) {
	k, rec := newTestKernel(t)
	q := k.NewEventQueue(3)
	require.True(t, q.Post(&Event{Sig: UserSig}, 0))
	require.True(t, q.Post(&Event{Sig: UserSig + 1}, 0))
	q.PostLIFO(&Event{Sig: UserSig + 2})
	q.PostLIFO(&Event{Sig: UserSig + 3})
	assert.Equal(t, []Signal{UserSig + 3, UserSig + 2, UserSig, UserSig + 1}, drain(q))
	assert.Len(t, rec.filter(TraceQueuePostLIFO), 2)

	q.PostLIFO(&Event{Sig: UserSig})
	assert.Equal(t, []Signal{UserSig}, drain(q))
}

func TestEventQueue_lifoFull(t *testing.T) {
	k, _ := newTestKernel(t)
	q := k.NewEventQueue(0)
	q.PostLIFO(&Event{Sig: UserSig})
	requireAssertion(t, "queue", 120, func() { q.PostLIFO(&Event{Sig: UserSig}) })
}

func TestEventQueue_margin(t *testing.T) {
	k, rec := newTestKernel(t)
	q := k.NewEventQueue(2)

	// 3 free, margin 2: ok, leaving 2
	require.True(t, q.Post(&Event{Sig: UserSig}, 2))
	// 2 free, margin 2: refused
	assert.False(t, q.Post(&Event{Sig: UserSig}, 2))
	require.True(t, q.Post(&Event{Sig: UserSig}, 1))
	assert.False(t, q.Post(&Event{Sig: UserSig}, 1))
	require.True(t, q.Post(&Event{Sig: UserSig}, NoMargin))
	assert.Zero(t, q.NFree())

	attempts := rec.filter(TraceQueuePostAttempt)
	require.Len(t, attempts, 2)
	assert.Equal(t, uint16(2), attempts[0].NFree)
	assert.Equal(t, uint16(1), attempts[1].NFree)

	requireAssertion(t, "queue", 110, func() { q.Post(&Event{Sig: UserSig}, NoMargin) })
}

func TestEventQueue_refusedPostRecycles(t *testing.T) {
	k, _ := newTestKernel(t)
	q := k.NewEventQueue(0)
	require.True(t, q.Post(&Event{Sig: UserSig}, 0))

	e := k.NewEvent(UserSig, 1)
	assert.False(t, q.Post(e, 0))
	assert.Equal(t, 4, poolFree(k, 1))

	// a referenced event survives the refusal
	e = k.NewRef(k.NewEvent(UserSig, 1))
	assert.False(t, q.Post(e, 0))
	assert.Equal(t, uint8(1), e.RefCount())
	assert.Equal(t, 3, poolFree(k, 1))
	k.DeleteRef(e)
	assert.Equal(t, 4, poolFree(k, 1))
}

func TestEventQueue_invalidLength(t *testing.T) {
	k, _ := newTestKernel(t)
	requireAssertion(t, "queue", 100, func() { k.NewEventQueue(-1) })
}
