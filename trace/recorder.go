package trace

import (
	"sync"

	"github.com/joeycumines/go-aokernel"
)

// Recorder keeps every record in memory.
type Recorder struct {
	records []aokernel.TraceRecord
	mu      sync.Mutex
}

var _ aokernel.TraceSink = (*Recorder)(nil)

// Emit implements [aokernel.TraceSink].
func (x *Recorder) Emit(rec aokernel.TraceRecord) {
	x.mu.Lock()
	x.records = append(x.records, rec)
	x.mu.Unlock()
}

// Records returns a copy of the records so far.
func (x *Recorder) Records() []aokernel.TraceRecord {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]aokernel.TraceRecord(nil), x.records...)
}

// Kinds returns the kinds of the records so far, optionally only those of
// the given kinds.
func (x *Recorder) Kinds(filter ...aokernel.TraceKind) []aokernel.TraceKind {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []aokernel.TraceKind
	for _, rec := range x.records {
		if len(filter) == 0 || contains(filter, rec.Kind) {
			out = append(out, rec.Kind)
		}
	}
	return out
}

// Reset discards every record.
func (x *Recorder) Reset() {
	x.mu.Lock()
	x.records = nil
	x.mu.Unlock()
}

func contains(kinds []aokernel.TraceKind, k aokernel.TraceKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}
