package main

import (
	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/logiface"
)

// table owns the forks, granting them to hungry philosophers. Fork n is to
// the right of philosopher n.
type table struct {
	k       *aokernel.Kernel
	a       *aokernel.Active
	log     *logiface.Logger[logiface.Event]
	forks   []bool
	hungry  []bool
	eating  []bool
	granted int
}

func newTable(k *aokernel.Kernel, n int, log *logiface.Logger[logiface.Event]) *table {
	t := &table{
		k:      k,
		log:    log,
		forks:  make([]bool, n),
		hungry: make([]bool, n),
		eating: make([]bool, n),
	}
	t.a = k.NewActive(t)
	return t
}

func (t *table) left(n int) int  { return (n + 1) % len(t.forks) }
func (t *table) right(n int) int { return n }

func (t *table) Init(*aokernel.Event) {}

func (t *table) Dispatch(e *aokernel.Event) {
	n := int(e.Payload[0])
	switch e.Sig {
	case hungrySig:
		t.hungry[n] = true
		t.tryServe(n)
	case doneSig:
		t.eating[n] = false
		t.forks[t.left(n)] = false
		t.forks[t.right(n)] = false
		// neighbors first, they may have been waiting on these forks
		t.tryServe((n + len(t.forks) - 1) % len(t.forks))
		t.tryServe(t.left(n))
	}
}

func (t *table) tryServe(n int) {
	if !t.hungry[n] || t.forks[t.left(n)] || t.forks[t.right(n)] {
		return
	}
	t.hungry[n] = false
	t.eating[n] = true
	t.forks[t.left(n)] = true
	t.forks[t.right(n)] = true
	t.granted++
	t.log.Debug().
		Int("philo", n).
		Log("serving")
	e := t.k.NewEvent(eatSig, 1)
	e.Payload[0] = uint8(n)
	t.k.Publish(e)
}
