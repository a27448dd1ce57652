package main

import (
	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/logiface"
)

var defaultTiming = timing{
	minThink: 5, maxThink: 20,
	minEat: 3, maxEat: 10,
}

// diner wires the philosophers and the table. Philosopher n runs at
// priority n+1, and the table above them all.
type diner struct {
	k      *aokernel.Kernel
	table  *table
	philos []*philo
}

func newDiner(k *aokernel.Kernel, n int, t timing, seed uint64, log *logiface.Logger[logiface.Event]) (*diner, error) {
	d := &diner{
		k:     k,
		table: newTable(k, n, log),
	}
	for i := range n {
		p, err := newPhilo(k, uint8(i), t, seed)
		if err != nil {
			return nil, err
		}
		p.table = d.table.a
		d.philos = append(d.philos, p)
	}
	return d, nil
}

func (d *diner) start() {
	n := len(d.philos)
	d.table.a.Start(aokernel.Priority(n+1), 2*n, nil)
	for i, p := range d.philos {
		p.a.Start(aokernel.Priority(i+1), 2*n, nil)
	}
}
