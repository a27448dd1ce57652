package aokernel

import (
	"time"
)

// Metrics is a snapshot of runtime statistics, see [Kernel.Metrics].
type Metrics struct {
	Queues []QueueStats
	Pools  []PoolStats
	// Latency is the distribution of run-to-completion step durations.
	// Only populated if enabled with [WithMetrics].
	Latency         LatencyMetrics
	Dispatches      uint64
	ContextSwitches uint64
	// Ready is the number of ready threads.
	Ready int
}

// LatencyMetrics summarizes a duration distribution. Percentiles are
// streaming estimates.
type LatencyMetrics struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// kernelMetrics is guarded by the kernel's critical section.
type kernelMetrics struct {
	p50, p90, p99   *quantile
	sum, max        time.Duration
	dispatches      uint64
	contextSwitches uint64
}

func newKernelMetrics() *kernelMetrics {
	return &kernelMetrics{
		p50: newQuantile(.50),
		p90: newQuantile(.90),
		p99: newQuantile(.99),
	}
}

func (m *kernelMetrics) recordDispatch(d time.Duration) {
	m.dispatches++
	m.sum += d
	m.max = max(m.max, d)
	f := float64(d)
	m.p50.observe(f)
	m.p90.observe(f)
	m.p99.observe(f)
}

// Metrics returns a snapshot of queue and pool usage, plus dispatch
// statistics if enabled with [WithMetrics].
func (k *Kernel) Metrics() Metrics {
	k.mu.Lock()
	defer k.mu.Unlock()

	var out Metrics
	out.Ready = k.readySet.Len()
	for p, a := range k.registry {
		// boosted threads are also registered at their ceiling
		if a == nil || a.pprio != Priority(p) {
			continue
		}
		out.Queues = append(out.Queues, QueueStats{
			Prio:  a.pprio,
			Cap:   a.eQueue.Cap(),
			NFree: int(a.eQueue.nFree),
			NMin:  int(a.eQueue.nMin),
		})
	}
	for _, p := range k.pools {
		out.Pools = append(out.Pools, PoolStats{
			BlockSize: p.blockSize,
			NTotal:    p.nTot,
			NFree:     len(p.free),
			NMin:      p.nMin,
		})
	}
	if m := k.metrics; m != nil {
		out.Dispatches = m.dispatches
		out.ContextSwitches = m.contextSwitches
		out.Latency = LatencyMetrics{
			P50:   time.Duration(m.p50.value()),
			P90:   time.Duration(m.p90.value()),
			P99:   time.Duration(m.p99.value()),
			Max:   m.max,
			Count: int(m.dispatches),
		}
		if m.dispatches != 0 {
			out.Latency.Mean = m.sum / time.Duration(m.dispatches)
		}
	}
	return out
}
