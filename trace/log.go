package trace

import (
	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/logiface"
)

// LogSink logs every record, at a fixed level.
type LogSink struct {
	logger *logiface.Logger[logiface.Event]
	level  logiface.Level
}

// NewLogSink returns a sink logging to logger at level, e.g.
// logiface.LevelDebug. A nil logger discards every record.
func NewLogSink(logger *logiface.Logger[logiface.Event], level logiface.Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

var _ aokernel.TraceSink = (*LogSink)(nil)

// Emit implements [aokernel.TraceSink].
func (x *LogSink) Emit(rec aokernel.TraceRecord) {
	b := x.logger.Build(x.level)
	if !b.Enabled() {
		return
	}
	b = b.Uint64("seq", rec.Seq).
		Str("kind", rec.Kind.String())
	if rec.Prio != 0 {
		b = b.Int("prio", int(rec.Prio))
	}
	if rec.Other != 0 {
		b = b.Int("other", int(rec.Other))
	}
	if rec.Sig != 0 {
		b = b.Int("sig", int(rec.Sig))
	}
	if rec.PoolID != 0 {
		b = b.Int("pool", int(rec.PoolID)).
			Int("ref", int(rec.RefCtr))
	}
	switch rec.Kind {
	case aokernel.TracePost, aokernel.TracePostAttempt, aokernel.TracePostLIFO,
		aokernel.TraceQueuePost, aokernel.TraceQueuePostAttempt, aokernel.TraceQueuePostLIFO:
		b = b.Int("nfree", int(rec.NFree)).
			Int("nmin", int(rec.NMin))
	case aokernel.TraceTick, aokernel.TraceTimeArm, aokernel.TraceTimeDisarm, aokernel.TraceTimePost:
		b = b.Int("rate", int(rec.Rate))
	}
	if rec.Ctr != 0 {
		b = b.Int64("ctr", int64(rec.Ctr))
	}
	b.Log("trace")
}
