// Command dpp runs the dining philosophers problem on the kernel: each
// philosopher is an active object, and a table active object owns the
// forks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/google/renameio/v2"
	"github.com/joeycumines/go-aokernel"
	"github.com/joeycumines/go-aokernel/trace"
	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
	"github.com/joeycumines/stumpy"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	config    string
	logFormat string
	stats     string
	duration  time.Duration
	traceRate int
	philos    int
	seed      uint64
	debug     bool
	trace     bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "kernel config file, .toml or .yaml")
	flag.StringVar(&f.logFormat, "log", "stumpy", "log format, stumpy or slog")
	flag.StringVar(&f.stats, "stats", "", "write a JSON metrics snapshot to this file on exit")
	flag.DurationVar(&f.duration, "duration", 0, "stop after this long, 0 runs until interrupted")
	flag.IntVar(&f.traceRate, "trace-rate", 0, "limit trace records per kind per second, 0 for no limit")
	flag.IntVar(&f.philos, "n", 5, "number of philosophers")
	flag.Uint64Var(&f.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&f.trace, "trace", false, "write trace records to stderr, as JSON lines")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(format string, debug bool) (*logiface.Logger[logiface.Event], error) {
	level := logiface.LevelInformational
	if debug {
		level = logiface.LevelDebug
	}
	switch format {
	case "stumpy":
		return stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
			stumpy.L.WithLevel(level),
		).Logger(), nil
	case "slog":
		slogLevel := slog.LevelInfo
		if debug {
			slogLevel = slog.LevelDebug
		}
		return islog.L.New(
			islog.L.WithSlogHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})),
			islog.L.WithLevel(level),
		).Logger(), nil
	default:
		return nil, fmt.Errorf("dpp: unknown log format %q", format)
	}
}

func run(ctx context.Context, f flags) error {
	if f.philos < 2 || f.philos > 64 {
		return fmt.Errorf("dpp: %d philosophers, want 2 to 64", f.philos)
	}

	logger, err := newLogger(f.logFormat, f.debug)
	if err != nil {
		return err
	}

	var cfg aokernel.Config
	if f.config != "" {
		c, err := aokernel.LoadConfig(f.config)
		if err != nil {
			return err
		}
		cfg = *c
	}
	if len(cfg.Pools) == 0 {
		cfg.Pools = []aokernel.PoolConfig{{BlockSize: 4, Count: 4 * f.philos}}
	}
	if cfg.MaxActive < f.philos+1 {
		cfg.MaxActive = f.philos + 1
	}
	if cfg.MaxTimeEvents < f.philos {
		cfg.MaxTimeEvents = f.philos
	}
	if cfg.MaxSignal < int(maxSig) {
		cfg.MaxSignal = int(maxSig)
	}

	opts := append(cfg.Options(),
		aokernel.WithLogger(logger),
		aokernel.WithMetrics(f.stats != "" || cfg.Metrics),
	)

	var async *trace.AsyncSink
	if f.trace {
		var sink aokernel.TraceSink = trace.NewJSONWriter(os.Stderr)
		if f.traceRate > 0 {
			sink = trace.NewRateLimit(sink, map[time.Duration]int{time.Second: f.traceRate})
		}
		async = trace.NewAsyncSink(sink, 1024, nil)
		opts = append(opts, aokernel.WithTraceSink(async))
	}

	k, err := aokernel.New(opts...)
	if err != nil {
		return err
	}

	d, err := newDiner(k, f.philos, defaultTiming, f.seed, logger)
	if err != nil {
		return err
	}

	if f.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	if async != nil {
		g.Go(func() error { return async.Run(gctx) })
	}
	g.Go(func() error {
		d.start()
		return k.Run(gctx)
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return err
	}

	b := logger.Info()
	for i, p := range d.philos {
		b = b.Int(fmt.Sprintf("philo_%d", i), p.meals)
	}
	b.Int("granted", d.table.granted).
		Log("dinner over")

	if async != nil && async.Dropped() != 0 {
		logger.Warning().
			Uint64("dropped", async.Dropped()).
			Log("trace records dropped")
	}

	if f.stats != "" {
		data, err := json.MarshalIndent(k.Metrics(), "", "  ")
		if err != nil {
			return err
		}
		if err := renameio.WriteFile(f.stats, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("dpp: write stats: %w", err)
		}
	}
	return nil
}
