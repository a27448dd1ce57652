package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/go-aokernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiner(t *testing.T, n int) (*aokernel.Kernel, *diner) {
	t.Helper()
	k, err := aokernel.New(
		aokernel.WithEventPool(4, 4*n),
		aokernel.WithMaxActive(n+1),
		aokernel.WithMaxTimeEvents(n),
		aokernel.WithMaxSignal(int(maxSig)),
	)
	require.NoError(t, err)
	d, err := newDiner(k, n, defaultTiming, 42, nil)
	require.NoError(t, err)
	d.start()
	return k, d
}

func TestDiner_forksExclusive(t *testing.T) {
	const n = 5
	k, d := newTestDiner(t, n)

	for range 1000 {
		k.Tick(0)
		for i, p := range d.philos {
			next := d.philos[(i+1)%n]
			if p.state == eating && next.state == eating {
				t.Fatalf("neighbors %d and %d eating together", i, (i+1)%n)
			}
			assert.Equal(t, p.state == eating, d.table.eating[i], "philo %d", i)
		}
	}

	total := 0
	for i, p := range d.philos {
		assert.Positive(t, p.meals, "philo %d starved", i)
		total += p.meals
	}
	assert.Equal(t, d.table.granted, total)

	// every post is consumed before Tick returns
	for _, s := range k.Metrics().Pools {
		assert.Equal(t, s.NTotal, s.NFree)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{`stumpy`, `slog`} {
		logger, err := newLogger(format, true)
		require.NoError(t, err, format)
		assert.NotNil(t, logger, format)
	}
	_, err := newLogger(`xml`, false)
	assert.Error(t, err)
}

func TestRun_stats(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, `stats.json`)
	config := filepath.Join(dir, `kernel.toml`)
	require.NoError(t, os.WriteFile(config, []byte("tick_period = \"1ms\"\n"), 0o644))

	err := run(context.Background(), flags{
		config:    config,
		logFormat: `stumpy`,
		stats:     stats,
		duration:  200 * time.Millisecond,
		philos:    5,
		seed:      1,
		trace:     true,
		traceRate: 10,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(stats)
	require.NoError(t, err)
	var m aokernel.Metrics
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Positive(t, m.Dispatches)
	assert.Len(t, m.Pools, 1)
}

func TestRun_invalid(t *testing.T) {
	assert.Error(t, run(context.Background(), flags{philos: 1, logFormat: `stumpy`}))
	assert.Error(t, run(context.Background(), flags{philos: 5, logFormat: `nope`}))
	assert.Error(t, run(context.Background(), flags{philos: 5, logFormat: `stumpy`, config: `missing.toml`}))
}
