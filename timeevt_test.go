package aokernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimedActive(t *testing.T, k *Kernel, j *journal, prio Priority, sig Signal, rate uint8) (*Active, *TimeEvent) {
	t.Helper()
	a := k.NewActive(logHandler(j, "a"))
	a.Start(prio, 4, nil)
	te, err := k.NewTimeEvent(a, sig, rate)
	require.NoError(t, err)
	return a, te
}

func ticks(k *Kernel, rate uint8, n int) {
	for range n {
		k.Tick(rate)
	}
}

func TestTimeEvent_oneShot(t *testing.T) {
	k, rec := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig+1, 0)
	assert.True(t, k.NoActiveTimeEvents(0))

	te.Arm(3, 0)
	assert.False(t, k.NoActiveTimeEvents(0))
	assert.Equal(t, uint32(3), te.CurrCtr())
	ticks(k, 0, 2)
	assert.Empty(t, j.get())
	assert.Equal(t, uint32(1), te.CurrCtr())
	k.Tick(0)
	assert.Equal(t, []string{"a:5"}, j.get())
	assert.Zero(t, te.CurrCtr())
	assert.True(t, k.NoActiveTimeEvents(0))
	assert.False(t, te.Disarm())

	ticks(k, 0, 5)
	assert.Equal(t, []string{"a:5"}, j.get())
	assert.Len(t, rec.filter(TraceTimePost), 1)
	assert.Same(t, te.Event(), &te.evt)
}

func TestTimeEvent_periodic(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 0)
	te.Arm(2, 3)
	var fired []int
	for i := 1; i <= 11; i++ {
		n := len(j.get())
		k.Tick(0)
		if len(j.get()) > n {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{2, 5, 8, 11}, fired)

	assert.True(t, te.Disarm())
	assert.False(t, k.NoActiveTimeEvents(0))
	k.Tick(0)
	assert.True(t, k.NoActiveTimeEvents(0))
}

func TestTimeEvent_disarm(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 0)

	te.Arm(2, 0)
	k.Tick(0)
	assert.True(t, te.Disarm())
	assert.True(t, te.WasDisarmed())
	assert.True(t, te.WasDisarmed())
	ticks(k, 0, 3)
	assert.Empty(t, j.get())

	// arming clears the flag
	te.Arm(1, 0)
	assert.False(t, te.WasDisarmed())
	assert.True(t, te.WasDisarmed())
	k.Tick(0)
	assert.Equal(t, []string{"a:4"}, j.get())

	assert.False(t, te.Disarm())
	assert.False(t, te.WasDisarmed())
}

func TestTimeEvent_disarmSameTick(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 0)
	te.Arm(1, 0)
	te.Disarm()
	te.Arm(2, 0)
	k.Tick(0)
	assert.Empty(t, j.get())
	k.Tick(0)
	assert.Equal(t, []string{"a:4"}, j.get())
}

func TestTimeEvent_rearm(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 0)

	assert.False(t, te.Rearm(3))
	k.Tick(0)
	assert.True(t, te.Rearm(5))
	ticks(k, 0, 4)
	assert.Empty(t, j.get())
	k.Tick(0)
	assert.Equal(t, []string{"a:4"}, j.get())
}

func TestTimeEvent_armTwice(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 0)
	te.Arm(1, 0)
	requireAssertion(t, "timeevt", 200, func() { te.Arm(1, 0) })
}

func TestTimeEvent_armZero(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 0)
	requireAssertion(t, "timeevt", 200, func() { te.Arm(0, 1) })
}

func TestTimeEvent_rates(t *testing.T) {
	k, _ := newTestKernel(t, WithMaxTickRate(2))
	var j journal
	_, te := newTimedActive(t, k, &j, 1, UserSig, 1)
	te.Arm(1, 0)
	ticks(k, 0, 3)
	assert.Empty(t, j.get())
	assert.True(t, k.NoActiveTimeEvents(0))
	assert.False(t, k.NoActiveTimeEvents(1))
	k.Tick(1)
	assert.Equal(t, []string{"a:4"}, j.get())
	requireAssertion(t, "timeevt", 400, func() { k.Tick(2) })
}

func TestTimeEvent_manyInOneTick(t *testing.T) {
	k, _ := newTestKernel(t)
	var j journal
	var tes []*TimeEvent
	for p := Priority(1); p <= 5; p++ {
		a := k.NewActive(logHandler(&j, "a"+string('0'+rune(p))))
		a.Start(p, 0, nil)
		te, err := k.NewTimeEvent(a, UserSig, 0)
		require.NoError(t, err)
		tes = append(tes, te)
	}
	for i, te := range tes {
		te.Arm(uint32(1+i%2), 0)
	}
	k.Tick(0)
	// all posted within the tick, then dispatched by priority
	assert.Equal(t, []string{"a5:4", "a3:4", "a1:4"}, j.get())
	k.Tick(0)
	assert.Equal(t, []string{"a5:4", "a3:4", "a1:4", "a4:4", "a2:4"}, j.get())
	assert.True(t, k.NoActiveTimeEvents(0))
}

func TestTimeEvent_postsToXThread(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	k, _ := newTestKernel(t)
	var j journal
	x := newTestXThread(t, k, func(x *XThread) {
		for range 2 {
			j.add("got %d", x.QueueGet(NoTimeout).Sig)
		}
	})
	te, err := k.NewTimeEvent(&x.Active, UserSig+2, 0)
	require.NoError(t, err)
	x.Start(2, 1)
	te.Arm(1, 1)
	ticks(k, 0, 2)
	assert.Equal(t, []string{"got 6", "got 6"}, j.get())
	assert.True(t, x.Exited())
	te.Disarm()
}

func TestKernel_NewTimeEvent(t *testing.T) {
	k, _ := newTestKernel(t, WithMaxTimeEvents(1))
	a := k.NewActive(HandlerFuncs{})
	a.Start(1, 0, nil)
	_, err := k.NewTimeEvent(a, UserSig, 0)
	require.NoError(t, err)
	_, err = k.NewTimeEvent(a, UserSig, 0)
	assert.ErrorIs(t, err, ErrTimeEventLimit)

	requireAssertion(t, "timeevt", 100, func() { k.NewTimeEvent(a, InitSig, 0) })
}
