package aokernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernel_Run(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	k, _ := newTestKernel(t, WithTickPeriod(time.Millisecond))
	fired := make(chan Signal, 1)
	a := k.NewActive(HandlerFuncs{DispatchFunc: func(e *Event) {
		fired <- e.Sig
	}})
	a.Start(1, 0, nil)
	te, err := k.NewTimeEvent(a, UserSig+1, 0)
	require.NoError(t, err)
	te.Arm(5, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	select {
	case sig := <-fired:
		assert.Equal(t, UserSig+1, sig)
	case <-time.After(5 * time.Second):
		t.Fatal("time event did not fire")
	}

	assert.Eventually(t, func() bool {
		return k.Run(ctx) == ErrKernelRunning
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestKernel_Run_canceled(t *testing.T) {
	k, _ := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, k.Run(ctx), context.Canceled)
	// may be run again
	assert.ErrorIs(t, k.Run(ctx), context.Canceled)
}
