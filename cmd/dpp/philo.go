package main

import (
	"math/rand/v2"

	"github.com/joeycumines/go-aokernel"
)

const (
	// hungrySig and doneSig are posted by a philosopher to the table, with
	// the philosopher number as payload.
	hungrySig = aokernel.UserSig + iota
	doneSig
	// eatSig is published by the table, to every philosopher, with the
	// number of the philosopher who may eat.
	eatSig
	// timeoutSig is the philosopher's own time event.
	timeoutSig
	maxSig
)

type philoState uint8

const (
	thinking philoState = iota
	hungry
	eating
)

// timing bounds the think and eat times, in ticks.
type timing struct {
	minThink, maxThink uint32
	minEat, maxEat     uint32
}

func (t timing) between(rnd *rand.Rand, lo, hi uint32) uint32 {
	if hi <= lo {
		return lo
	}
	return lo + rnd.Uint32N(hi-lo+1)
}

type philo struct {
	k      *aokernel.Kernel
	a      *aokernel.Active
	table  *aokernel.Active
	te     *aokernel.TimeEvent
	rnd    *rand.Rand
	timing timing
	meals  int
	num    uint8
	state  philoState
}

func newPhilo(k *aokernel.Kernel, num uint8, t timing, seed uint64) (*philo, error) {
	p := &philo{
		k:      k,
		num:    num,
		timing: t,
		rnd:    rand.New(rand.NewPCG(seed, uint64(num))),
	}
	p.a = k.NewActive(p)
	te, err := k.NewTimeEvent(p.a, timeoutSig, 0)
	if err != nil {
		return nil, err
	}
	p.te = te
	return p, nil
}

func (p *philo) Init(*aokernel.Event) {
	p.a.Subscribe(eatSig)
	p.te.Arm(p.timing.between(p.rnd, p.timing.minThink, p.timing.maxThink), 0)
}

func (p *philo) Dispatch(e *aokernel.Event) {
	switch e.Sig {
	case timeoutSig:
		switch p.state {
		case thinking:
			p.state = hungry
			p.table.Post(p.event(hungrySig), aokernel.NoMargin)
		case eating:
			p.state = thinking
			p.table.Post(p.event(doneSig), aokernel.NoMargin)
			p.te.Arm(p.timing.between(p.rnd, p.timing.minThink, p.timing.maxThink), 0)
		}
	case eatSig:
		if p.state == hungry && e.Payload[0] == p.num {
			p.state = eating
			p.meals++
			p.te.Arm(p.timing.between(p.rnd, p.timing.minEat, p.timing.maxEat), 0)
		}
	}
}

func (p *philo) event(sig aokernel.Signal) *aokernel.Event {
	e := p.k.NewEvent(sig, 1)
	e.Payload[0] = p.num
	return e
}
