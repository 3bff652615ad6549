package workload

import (
	"context"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/slabpool/pkg/config"
	"github.com/ajitpratap0/slabpool/pkg/errors"
	"github.com/ajitpratap0/slabpool/pkg/freelist"
	"github.com/ajitpratap0/slabpool/pkg/metrics"
)

// publishInterval is how often the stress driver pushes a pool snapshot
// into the Prometheus registry while workers run.
const publishInterval = time.Second

// latencyWindow bounds the number of construct latencies kept for
// percentile reporting.
const latencyWindow = 65536

// RunStress hammers one mutex-guarded pool from many goroutines. Each
// worker runs cfg.Workload.Cycles full lifecycles: construct a slot with a
// worker-unique identity, optionally hold it, read it back through the
// handle, verify nobody else wrote to it, destroy it. Exhaustion is treated
// as backpressure, not failure: the worker yields and retries until a slot
// frees up.
//
// The pool runs over caller-allocated storage to exercise the borrowed-slab
// construction path, and the driver publishes live snapshots to the
// Prometheus registry while it runs.
func RunStress(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid stress configuration")
	}

	workers := cfg.Workload.GetGoroutines()
	poolName := cfg.PoolName()

	log.Info("starting stress",
		zap.Int("capacity", cfg.Pool.Capacity),
		zap.Int("goroutines", workers),
		zap.Int("cycles", cfg.Workload.Cycles),
		zap.Duration("hold", cfg.Workload.Hold),
		zap.Int("fail_every", cfg.Workload.FailEvery))

	var finalized atomic.Int64
	opts := []freelist.Option[Entity]{
		freelist.WithName[Entity](poolName),
		freelist.WithFinalizer(func(e *Entity) {
			finalized.Add(1)
			e.ID = -1
		}),
	}
	if cfg.Pool.TraceSlots {
		opts = append(opts, freelist.WithLogger[Entity](log))
	}

	// The slab and the free stack live in caller-owned buffers, the way an
	// embedding application would place them inside a larger arena.
	slab := make([]Entity, cfg.Pool.Capacity)
	free := make([]uint32, cfg.Pool.Capacity)
	pool, err := freelist.NewConcurrentOn(slab, free, opts...)
	if err != nil {
		return nil, err
	}
	metrics.Publish(poolName, pool.Stats())

	latencies := metrics.NewLatencyTracker(latencyWindow)
	throughput := metrics.NewThroughputTracker(poolName)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(publishInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Publish(poolName, pool.Stats())
				throughput.GetAndReset()
			}
		}
	}()

	var m0 runtime.MemStats
	runtime.ReadMemStats(&m0)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		worker := w
		g.Go(func() error {
			// Seeded per worker so hold jitter interleaves the same way
			// on every run of the same configuration.
			rng := rand.New(rand.NewSource(cfg.Workload.Seed + int64(worker)))

			for cycle := 1; cycle <= cfg.Workload.Cycles; cycle++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				// The identity is unique across all workers and cycles,
				// so a verify mismatch means two holders shared a slot.
				id := int64(worker)<<32 | int64(cycle)
				inject := cfg.Workload.InjectsFailures() && cycle%cfg.Workload.FailEvery == 0

				acquireStart := time.Now()
				var h freelist.Handle
				var err error
				for {
					h, err = pool.Construct(func(e *Entity) error {
						if inject {
							return errInjected
						}
						e.stamp(id)
						return nil
					})
					if err == nil || !freelist.IsExhausted(err) {
						break
					}
					if err := gctx.Err(); err != nil {
						return err
					}
					runtime.Gosched()
				}
				if err != nil {
					if errors.IsType(err, errors.ErrorTypeConstruction) {
						// Injected failure: the slot went straight back,
						// the cycle is spent.
						continue
					}
					return err
				}
				d := time.Since(acquireStart)
				latencies.Record(d)
				metrics.OperationLatency.WithLabelValues(poolName, "construct").
					Observe(float64(d.Nanoseconds()))

				if cfg.Workload.Hold > 0 {
					time.Sleep(time.Duration(rng.Int63n(int64(cfg.Workload.Hold)) + 1))
				}

				e, err := pool.Get(h)
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeInternal, "live handle failed lookup")
				}
				if !e.verify(id) {
					return errors.Newf(errors.ErrorTypeInternal,
						"slot %d corrupted while held by worker %d", h.Index(), worker)
				}
				if err := pool.Destroy(h); err != nil {
					return errors.Wrap(err, errors.ErrorTypeInternal, "destroy of a live handle failed")
				}
				throughput.Increment(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	var m1 runtime.MemStats
	runtime.ReadMemStats(&m1)

	// Every slot must be back on the free stack and every constructed
	// entity must have been finalized exactly once.
	if pool.Free() != pool.Cap() {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"pool leaked slots after stress: %d free of %d", pool.Free(), pool.Cap())
	}
	stats := pool.Stats()
	constructed := stats.Acquires - stats.FailedConstructs
	if got := finalized.Load(); got != constructed {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"finalizer ran %d times for %d constructed slots", got, constructed)
	}

	allocated := float64(m1.TotalAlloc - m0.TotalAlloc)
	metrics.AllocationRate.Set(allocated / duration.Seconds())
	metrics.Publish(poolName, stats)

	log.Info("stress workers finished",
		zap.Int64("constructed", constructed),
		zap.Int64("exhaustions", stats.Exhaustions),
		zap.Int("high_water", stats.HighWater),
		zap.Duration("duration", duration))

	report := &Report{
		Name:             cfg.Name,
		Workload:         "stress",
		Capacity:         stats.Capacity,
		PhysicalSize:     pool.PhysicalSize(),
		Goroutines:       workers,
		Cycles:           cfg.Workload.Cycles,
		Constructed:      constructed,
		Destroyed:        finalized.Load(),
		Exhaustions:      stats.Exhaustions,
		FailedConstructs: stats.FailedConstructs,
		HighWater:        stats.HighWater,
		Duration:         duration,
		P50Latency:       latencies.GetPercentile(50),
		P99Latency:       latencies.GetPercentile(99),
	}
	// A run where every construct was an injected failure has no completed
	// lifecycles to rate.
	if constructed > 0 {
		report.OpsPerSecond = float64(constructed) / duration.Seconds()
		report.AllocBytesPerOp = allocated / float64(constructed)
	}
	return report, nil
}
