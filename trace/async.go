package trace

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/go-longpoll"
)

// AsyncSink decouples a slow sink from the kernel: Emit only enqueues, and
// Run forwards records to the wrapped sink in batches. Records that do not
// fit in the buffer are dropped, and counted.
type AsyncSink struct {
	next    aokernel.TraceSink
	cfg     *longpoll.ChannelConfig
	ch      chan aokernel.TraceRecord
	dropped atomic.Uint64
	once    sync.Once
}

var _ aokernel.TraceSink = (*AsyncSink)(nil)

// NewAsyncSink buffers up to size records for next. The config, which may
// be nil, controls batching, see longpoll.Channel.
func NewAsyncSink(next aokernel.TraceSink, size int, cfg *longpoll.ChannelConfig) *AsyncSink {
	if next == nil {
		panic(`trace: nil sink`)
	}
	return &AsyncSink{
		next: next,
		cfg:  cfg,
		ch:   make(chan aokernel.TraceRecord, size),
	}
}

// Emit implements [aokernel.TraceSink]. It never blocks.
func (x *AsyncSink) Emit(rec aokernel.TraceRecord) {
	select {
	case x.ch <- rec:
	default:
		x.dropped.Add(1)
	}
}

// Dropped returns the number of records dropped because the buffer was full.
func (x *AsyncSink) Dropped() uint64 {
	return x.dropped.Load()
}

// Close stops accepting records, after which Run returns nil once the
// buffer is drained. Emit must not be called after Close.
func (x *AsyncSink) Close() error {
	x.once.Do(func() { close(x.ch) })
	return nil
}

// Run forwards records until ctx is done, returning its error, or until
// the sink is closed and drained, returning nil.
func (x *AsyncSink) Run(ctx context.Context) error {
	batch := make([]aokernel.TraceRecord, 0, 16)
	for {
		err := longpoll.Channel(ctx, x.cfg, x.ch, func(rec aokernel.TraceRecord) error {
			batch = append(batch, rec)
			return nil
		})
		for _, rec := range batch {
			x.next.Emit(rec)
		}
		clear(batch)
		batch = batch[:0]
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
