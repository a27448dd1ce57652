package trace

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// JSONWriter writes each record as a line of JSON, e.g.
//
//	{"seq":12,"time":"2006-01-02T15:04:05.999999999Z","kind":"post","prio":3,"sig":4,"nfree":0,"nmin":0}
//
// It is a human-oriented debug format, with no framing beyond newlines.
// Write errors are counted, see Errors, and otherwise ignored.
type JSONWriter struct {
	w      io.Writer
	buf    []byte
	errors uint64
	mu     sync.Mutex
}

var _ aokernel.TraceSink = (*JSONWriter)(nil)

// NewJSONWriter returns a sink writing to w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

// Emit implements [aokernel.TraceSink].
func (x *JSONWriter) Emit(rec aokernel.TraceRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.buf = AppendJSON(x.buf[:0], rec)
	x.buf = append(x.buf, '\n')
	if _, err := x.w.Write(x.buf); err != nil {
		x.errors++
	}
}

// Errors returns the number of failed writes.
func (x *JSONWriter) Errors() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.errors
}

// AppendJSON appends rec to dst as a JSON object, omitting zero fields
// other than seq, time and kind.
func AppendJSON(dst []byte, rec aokernel.TraceRecord) []byte {
	dst = append(dst, `{"seq":`...)
	dst = strconv.AppendUint(dst, rec.Seq, 10)
	dst = append(dst, `,"time":`...)
	dst = jsonenc.AppendString(dst, rec.Time.UTC().Format(time.RFC3339Nano))
	dst = append(dst, `,"kind":`...)
	dst = jsonenc.AppendString(dst, rec.Kind.String())
	dst = appendUint(dst, "prio", uint64(rec.Prio))
	dst = appendUint(dst, "other", uint64(rec.Other))
	dst = appendUint(dst, "sig", uint64(rec.Sig))
	dst = appendUint(dst, "pool", uint64(rec.PoolID))
	if rec.PoolID != 0 {
		dst = append(dst, `,"ref":`...)
		dst = strconv.AppendUint(dst, uint64(rec.RefCtr), 10)
	}
	dst = appendUint(dst, "rate", uint64(rec.Rate))
	dst = appendUint(dst, "ctr", uint64(rec.Ctr))
	switch rec.Kind {
	case aokernel.TracePost, aokernel.TracePostAttempt, aokernel.TracePostLIFO,
		aokernel.TraceQueuePost, aokernel.TraceQueuePostAttempt, aokernel.TraceQueuePostLIFO:
		dst = append(dst, `,"nfree":`...)
		dst = strconv.AppendUint(dst, uint64(rec.NFree), 10)
		dst = append(dst, `,"nmin":`...)
		dst = strconv.AppendUint(dst, uint64(rec.NMin), 10)
	default:
		dst = appendUint(dst, "nfree", uint64(rec.NFree))
	}
	return append(dst, '}')
}

func appendUint(dst []byte, key string, v uint64) []byte {
	if v == 0 {
		return dst
	}
	dst = append(dst, ',')
	dst = jsonenc.AppendString(dst, key)
	dst = append(dst, ':')
	return strconv.AppendUint(dst, v, 10)
}
