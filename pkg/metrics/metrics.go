// Package metrics provides performance tracking and observability for
// slabpool using Prometheus metrics. It offers collectors for pool
// occupancy, operation rates, and operation latency.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for pool occupancy and operation totals
//   - Publish to push a pool Stats snapshot into the registry
//   - Latency and throughput tracking utilities
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Publish a pool snapshot
//	metrics.Publish("sessions", pool.Stats())
//
//	// Track operation latency
//	timer := metrics.NewTimer("acquire")
//	h, err := pool.Acquire()
//	metrics.OperationLatency.WithLabelValues("sessions", "acquire").
//	    Observe(float64(timer.Stop().Nanoseconds()))
//
//	// Serve the registry
//	http.ListenAndServe(":9102", metrics.Handler())
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total acquisitions)
// Gauge: Values that can go up or down (e.g., free slots)
// Histogram: Distribution of values (e.g., latency percentiles)
package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajitpratap0/slabpool/pkg/freelist"
)

var (
	// PoolCapacity reports the fixed slot capacity of each pool.
	PoolCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slabpool_capacity_slots",
			Help: "Fixed slot capacity of the pool",
		},
		[]string{"pool"},
	)

	// PoolFree reports the number of currently free slots.
	PoolFree = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slabpool_free_slots",
			Help: "Number of free slots in the pool",
		},
		[]string{"pool"},
	)

	// PoolInUse reports the number of currently checked-out slots.
	PoolInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slabpool_in_use_slots",
			Help: "Number of checked-out slots in the pool",
		},
		[]string{"pool"},
	)

	// PoolHighWater reports the largest in-use count observed.
	PoolHighWater = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slabpool_high_water_slots",
			Help: "Largest number of simultaneously checked-out slots observed",
		},
		[]string{"pool"},
	)

	// AcquiresTotal counts successful slot acquisitions.
	AcquiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabpool_acquires_total",
			Help: "Total number of successful slot acquisitions",
		},
		[]string{"pool"},
	)

	// ReleasesTotal counts slots returned to the free stack, including
	// destroys and reclaims after failed constructs.
	ReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabpool_releases_total",
			Help: "Total number of slots returned to the free stack",
		},
		[]string{"pool"},
	)

	// ExhaustionsTotal counts acquisitions rejected on a full pool.
	ExhaustionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabpool_exhaustions_total",
			Help: "Total number of acquisitions rejected because the pool was full",
		},
		[]string{"pool"},
	)

	// FailedConstructsTotal counts initializer failures.
	FailedConstructsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slabpool_failed_constructs_total",
			Help: "Total number of in-place initializers that returned an error",
		},
		[]string{"pool"},
	)

	// OperationLatency tracks the distribution of pool operation latencies
	// in nanoseconds. The buckets are sized for sub-microsecond stack
	// operations with a tail for contended and initializer-bound calls.
	//
	// Example:
	//
	//	start := time.Now()
	//	h, _ := pool.Acquire()
	//	metrics.OperationLatency.WithLabelValues("sessions", "acquire").
	//	    Observe(float64(time.Since(start).Nanoseconds()))
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "slabpool_operation_latency_nanoseconds",
			Help: "Pool operation latency in nanoseconds",
			Buckets: []float64{
				50,     // 50ns - uncontended stack pop
				100,    // 100ns
				250,    // 250ns
				500,    // 500ns
				1000,   // 1μs - contended lock
				2500,   // 2.5μs
				10000,  // 10μs
				100000, // 100μs - initializer-bound
				1e6,    // 1ms
			},
		},
		[]string{"pool", "operation"},
	)

	// OpsPerSecond reports the operation rate of a pool over the last
	// tracking window.
	OpsPerSecond = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slabpool_ops_per_second",
			Help: "Pool operations per second over the last tracking window",
		},
		[]string{"pool"},
	)

	// AllocationRate tracks the process heap allocation rate. The stress
	// driver publishes it to show the pool's steady state allocates nothing.
	AllocationRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slabpool_memory_allocation_rate_bytes_per_second",
			Help: "Heap allocation rate in bytes per second",
		},
	)
)

// published remembers the last snapshot per pool so counter metrics can be
// advanced by delta on each Publish.
var (
	publishedMu sync.Mutex
	published   = make(map[string]freelist.Stats)
)

// Publish pushes a pool Stats snapshot into the Prometheus registry.
// Occupancy metrics are set directly; totals are advanced by the delta
// since the previous snapshot for the same pool name, so Publish can be
// called as often as convenient.
//
// Example:
//
//	metrics.Publish("sessions", pool.Stats())
func Publish(name string, s freelist.Stats) {
	PoolCapacity.WithLabelValues(name).Set(float64(s.Capacity))
	PoolFree.WithLabelValues(name).Set(float64(s.Free))
	PoolInUse.WithLabelValues(name).Set(float64(s.InUse))
	PoolHighWater.WithLabelValues(name).Set(float64(s.HighWater))

	publishedMu.Lock()
	prev := published[name]
	published[name] = s
	publishedMu.Unlock()

	addDelta(AcquiresTotal, name, s.Acquires, prev.Acquires)
	addDelta(ReleasesTotal, name, s.Releases, prev.Releases)
	addDelta(ExhaustionsTotal, name, s.Exhaustions, prev.Exhaustions)
	addDelta(FailedConstructsTotal, name, s.FailedConstructs, prev.FailedConstructs)
}

// addDelta advances a counter by the snapshot delta. A shrunk total means
// the pool behind the name was replaced; the counter restarts from there.
func addDelta(c *prometheus.CounterVec, name string, cur, prev int64) {
	d := cur - prev
	if d < 0 {
		d = cur
	}
	if d > 0 {
		c.WithLabelValues(name).Add(float64(d))
	}
}

// Handler returns an HTTP handler serving the Prometheus registry. The
// stress command mounts it on the configured metrics address.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("demo")
//	report := workload.RunDemo(ctx, cfg)
//	logger.Info("demo finished", zap.Duration("duration", timer.Stop()))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks pool operations per second over time windows.
// It updates the OpsPerSecond gauge when queried. Thread-safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	pool      string
}

// NewThroughputTracker creates a new throughput tracker for a pool.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("sessions")
//	for i := 0; i < cycles; i++ {
//	    runCycle(pool)
//	    tracker.Increment(1)
//	}
//	rate := tracker.GetAndReset()
func NewThroughputTracker(pool string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		pool:      pool,
	}
}

// Increment adds n to the operation count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current rate (operations/second), updates the
// OpsPerSecond gauge, resets the counter, and returns the calculated rate.
// Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	rate := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	OpsPerSecond.WithLabelValues(t.pool).Set(rate)

	return rate
}

// LatencyTracker keeps a bounded window of observed latencies for
// percentile reporting.
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a new latency tracker
func NewLatencyTracker(maxSize int) *LatencyTracker {
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		// Remove oldest
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// GetPercentile returns the percentile value (0-100) over the window.
// The window is sorted in place on each call; callers are expected to
// query percentiles at reporting time, not per operation.
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) == 0 {
		return 0
	}

	sort.Slice(l.values, func(i, j int) bool { return l.values[i] < l.values[j] })

	index := int(float64(len(l.values)) * p / 100)
	if index >= len(l.values) {
		index = len(l.values) - 1
	}

	return l.values[index]
}
