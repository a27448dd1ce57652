package aokernel

import (
	"math/bits"
)

// Priority identifies a thread and orders it for preemption. Higher values
// are more urgent. 0 is the idle level and is never a member of a [PrioSet].
type Priority uint8

// MaxPriority is the highest priority a [PrioSet] can hold.
const MaxPriority = 255

// PrioSet is a set of priorities 1..MaxPriority with O(1) insert, remove
// and highest-member lookup, via a summary word over four 64-bit groups.
//
// The zero value is an empty set. PrioSet is not safe for concurrent use;
// the kernel only mutates its sets inside its critical section.
type PrioSet struct {
	groups  [4]uint64
	summary uint64
}

// prioIndex panics directly on 0, as a PrioSet has no kernel to route the
// violation through the assert handler.
func prioIndex(p Priority) (group, bit uint) {
	if p == 0 {
		panic(&AssertionError{Module: "prioset", Location: 100})
	}
	n := uint(p) - 1
	return n >> 6, n & 63
}

// Insert adds p to the set. Inserting 0 panics with an [*AssertionError].
func (s *PrioSet) Insert(p Priority) {
	g, b := prioIndex(p)
	s.groups[g] |= 1 << b
	s.summary |= 1 << g
}

// Remove deletes p from the set, if present.
func (s *PrioSet) Remove(p Priority) {
	g, b := prioIndex(p)
	s.groups[g] &^= 1 << b
	if s.groups[g] == 0 {
		s.summary &^= 1 << g
	}
}

// Has reports whether p is a member.
func (s *PrioSet) Has(p Priority) bool {
	if p == 0 {
		return false
	}
	g, b := prioIndex(p)
	return s.groups[g]&(1<<b) != 0
}

// IsEmpty reports whether the set has no members.
func (s *PrioSet) IsEmpty() bool {
	return s.summary == 0
}

// FindMax returns the highest member, or 0 if the set is empty.
func (s *PrioSet) FindMax() Priority {
	if s.summary == 0 {
		return 0
	}
	g := bits.Len64(s.summary) - 1
	return Priority(g<<6 + bits.Len64(s.groups[g]))
}

// Len returns the number of members.
func (s *PrioSet) Len() int {
	var n int
	for _, w := range s.groups {
		n += bits.OnesCount64(w)
	}
	return n
}
