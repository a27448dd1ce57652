// Package gid identifies the calling goroutine.
//
// The kernel uses goroutine identity to tell the goroutine that currently
// holds the CPU apart from foreign goroutines, which it treats as interrupts.
package gid

import (
	"runtime"
)

// Get returns the id of the calling goroutine, parsed from the header of
// runtime.Stack ("goroutine N [...]"). It never returns 0 for a live
// goroutine.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) uint64 {
	const prefix = "goroutine "
	if len(b) < len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
