// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package aokernel

import (
	"fmt"
	"slices"
	"time"

	"github.com/joeycumines/logiface"
)

// kernelOptions holds configuration options for Kernel creation.
type kernelOptions struct {
	logger        *logiface.Logger[logiface.Event]
	traceSink     TraceSink
	assertHandler AssertHandler
	warnRates     map[time.Duration]int
	pools         []poolSpec
	tickPeriod    time.Duration
	maxActive     int
	maxTickRate   int
	maxTimeEvents int
	maxSignal     int
	metrics       bool
}

type poolSpec struct {
	blockSize int
	count     int
}

// Option configures a Kernel instance.
type Option interface {
	applyKernel(*kernelOptions) error
}

// kernelOptionImpl implements Option.
type kernelOptionImpl struct {
	applyKernelFunc func(*kernelOptions) error
}

func (o *kernelOptionImpl) applyKernel(opts *kernelOptions) error {
	return o.applyKernelFunc(opts)
}

// WithMaxActive sets the highest priority available to active objects,
// extended threads and mutex ceilings. Must be within 1..255.
func WithMaxActive(n int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if n < 1 || n > MaxPriority {
			return &ConfigError{Field: "max_active", Cause: fmt.Errorf("%d out of range [1, %d]", n, MaxPriority)}
		}
		opts.maxActive = n
		return nil
	}}
}

// WithMaxTickRate sets the number of independent tick domains.
func WithMaxTickRate(n int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if n < 1 || n > 255 {
			return &ConfigError{Field: "max_tick_rate", Cause: fmt.Errorf("%d out of range [1, 255]", n)}
		}
		opts.maxTickRate = n
		return nil
	}}
}

// WithMaxTimeEvents sets the number of time event slots. Every extended
// thread uses one slot for its timeouts.
func WithMaxTimeEvents(n int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if n < 0 || n > 1<<30 {
			return &ConfigError{Field: "max_time_events", Cause: fmt.Errorf("%d out of range", n)}
		}
		opts.maxTimeEvents = n
		return nil
	}}
}

// WithMaxSignal sets the size of the publish-subscribe table. Signals in
// [UserSig, n) may be subscribed to.
func WithMaxSignal(n int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if n < int(UserSig) || n > 1<<16 {
			return &ConfigError{Field: "max_signal", Cause: fmt.Errorf("%d out of range [%d, %d]", n, UserSig, 1<<16)}
		}
		opts.maxSignal = n
		return nil
	}}
}

// WithEventPool adds an event pool of count blocks, each holding a payload
// of up to blockSize bytes. At most 255 pools may be configured. Pools are
// ordered by block size regardless of the order they are added in.
func WithEventPool(blockSize, count int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if blockSize < 0 || count < 1 || count > 1<<16-1 {
			return &ConfigError{Field: "pools", Cause: fmt.Errorf("block size %d, count %d", blockSize, count)}
		}
		opts.pools = append(opts.pools, poolSpec{blockSize: blockSize, count: count})
		return nil
	}}
}

// WithTickPeriod sets the period at which [Kernel.Run] ticks rate 0.
func WithTickPeriod(d time.Duration) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if d <= 0 {
			return &ConfigError{Field: "tick_period", Cause: fmt.Errorf("%v must be positive", d)}
		}
		opts.tickPeriod = d
		return nil
	}}
}

// WithLogger sets the logger. A nil logger, the default, disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithTraceSink sets the receiver of trace records. See [TraceSink].
func WithTraceSink(sink TraceSink) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.traceSink = sink
		return nil
	}}
}

// WithAssertHandler replaces the default handler, which panics with the
// [*AssertionError].
func WithAssertHandler(fn AssertHandler) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.assertHandler = fn
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, see [Kernel.Metrics].
// This adds a clock read around every dispatch.
func WithMetrics(enabled bool) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// WithWarnRateLimits sets the rates used to limit repeated warnings, per
// category, e.g. refused posts to a given active object.
func WithWarnRateLimits(rates map[time.Duration]int) Option {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		if len(rates) == 0 {
			return &ConfigError{Field: "warn_rate_limits", Cause: fmt.Errorf("no rates")}
		}
		opts.warnRates = rates
		return nil
	}}
}

// resolveKernelOptions applies Option instances to kernelOptions.
func resolveKernelOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		maxActive:     32,
		maxTickRate:   2,
		maxTimeEvents: 64,
		maxSignal:     64,
		tickPeriod:    10 * time.Millisecond,
		warnRates: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	if len(cfg.pools) > 255 {
		return nil, &ConfigError{Field: "pools", Cause: fmt.Errorf("%d pools, at most 255", len(cfg.pools))}
	}
	slices.SortStableFunc(cfg.pools, func(a, b poolSpec) int { return a.blockSize - b.blockSize })
	return cfg, nil
}
