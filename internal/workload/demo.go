package workload

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/slabpool/pkg/config"
	"github.com/ajitpratap0/slabpool/pkg/errors"
	"github.com/ajitpratap0/slabpool/pkg/freelist"
	"github.com/ajitpratap0/slabpool/pkg/metrics"
)

// errInjected simulates a failing user initializer when fault injection is
// configured.
var errInjected = fmt.Errorf("injected initializer failure")

// RunDemo walks a pool through its whole lifecycle on one goroutine:
// construct until the pool reports exhaustion, verify every live slot
// through its handle, destroy everything, prove stale handles are rejected,
// and (for the single-goroutine variant) transfer the pool with Move and
// show the source went inert. It returns a Report describing the run.
//
// The demo treats any unexpected pool behavior as a hard error: it is as
// much an acceptance check as a showcase.
func RunDemo(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid demo configuration")
	}
	if cfg.Workload.FailEvery == 1 {
		return nil, errors.New(errors.ErrorTypeConfig,
			"fail_every of 1 fails every construct, so the demo could never fill the pool")
	}

	log.Info("starting demo",
		zap.Int("capacity", cfg.Pool.Capacity),
		zap.Bool("concurrent", cfg.Pool.Concurrent),
		zap.Int("fail_every", cfg.Workload.FailEvery))

	var destroyed int64
	opts := []freelist.Option[Entity]{
		freelist.WithName[Entity](cfg.PoolName()),
		freelist.WithFinalizer(func(e *Entity) {
			destroyed++
			e.ID = -1
		}),
	}
	if cfg.Pool.TraceSlots {
		opts = append(opts, freelist.WithLogger[Entity](log))
	}

	// The demo normally runs the single-goroutine variant; with
	// pool.concurrent it exercises the mutex-guarded one through the same
	// steps, minus the Move phase.
	var (
		p    slotPool[Entity]
		base *freelist.Pool[Entity]
	)
	if cfg.Pool.Concurrent {
		cp, err := freelist.NewConcurrent[Entity](cfg.Pool.Capacity, opts...)
		if err != nil {
			return nil, err
		}
		p = cp
	} else {
		sp, err := freelist.New[Entity](cfg.Pool.Capacity, opts...)
		if err != nil {
			return nil, err
		}
		p = sp
		base = sp
	}

	var m0 runtime.MemStats
	runtime.ReadMemStats(&m0)
	start := time.Now()

	// Phase 1: construct until the pool is full. Injected initializer
	// failures must bounce the slot back without consuming capacity.
	handles := make([]freelist.Handle, 0, p.Cap())
	ids := make([]int64, 0, p.Cap())
	var constructed, failedInits int64
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt++
		id := int64(attempt)
		inject := cfg.Workload.InjectsFailures() && attempt%cfg.Workload.FailEvery == 0

		h, err := p.Construct(func(e *Entity) error {
			if inject {
				return errInjected
			}
			e.stamp(id)
			return nil
		})
		if err != nil {
			if freelist.IsExhausted(err) {
				log.Info("pool exhausted as expected",
					zap.Int64("constructed", constructed),
					zap.Int64("failed_inits", failedInits),
					zap.Int("attempts", attempt))
				break
			}
			if errors.IsType(err, errors.ErrorTypeConstruction) {
				failedInits++
				continue
			}
			return nil, err
		}
		constructed++
		handles = append(handles, h)
		ids = append(ids, id)
	}

	if got := p.InUse(); got != p.Cap() {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"exhausted pool should have every slot in use, got %d of %d", got, p.Cap())
	}

	// Phase 2: every live handle still resolves, and every slot still
	// carries exactly what its constructor wrote.
	for i, h := range handles {
		e, err := p.Get(h)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "live handle failed lookup")
		}
		if !e.verify(ids[i]) {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"slot %d contents corrupted", h.Index())
		}
	}
	log.Info("all live slots verified", zap.Int("slots", len(handles)))

	// Phase 3: destroy everything; the finalizer must run once per slot
	// and the free stack must refill completely.
	for _, h := range handles {
		if err := p.Destroy(h); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "destroy of a live handle failed")
		}
	}
	if p.Free() != p.Cap() {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"pool leaked slots: %d free of %d", p.Free(), p.Cap())
	}
	if destroyed != constructed {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"finalizer ran %d times for %d constructed slots", destroyed, constructed)
	}
	log.Info("all slots destroyed", zap.Int64("destroyed", destroyed))

	// Phase 4: the handles are dead now and must stay dead.
	if err := p.Destroy(handles[0]); !freelist.IsStaleHandle(err) {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"double destroy should be rejected as stale, got %v", err)
	}

	// Phase 5: hand the pool to a new owner and confirm the old one is
	// inert while the new one keeps working.
	if base != nil {
		moved, err := freelist.Move(base)
		if err != nil {
			return nil, err
		}
		if _, err := base.Acquire(); !freelist.IsMoved(err) {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"moved-from pool should reject operations, got %v", err)
		}
		h, err := moved.Construct(func(e *Entity) error {
			e.stamp(1)
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "destination pool rejected construct")
		}
		constructed++
		if err := moved.Destroy(h); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "destination pool rejected destroy")
		}
		log.Info("pool moved and verified")
		p = moved
	}

	duration := time.Since(start)
	var m1 runtime.MemStats
	runtime.ReadMemStats(&m1)

	stats := p.Stats()
	metrics.Publish(p.Name(), stats)

	ops := constructed + destroyed
	report := &Report{
		Name:             cfg.Name,
		Workload:         "demo",
		Capacity:         stats.Capacity,
		PhysicalSize:     p.PhysicalSize(),
		Goroutines:       1,
		Constructed:      constructed,
		Destroyed:        destroyed,
		Exhaustions:      stats.Exhaustions,
		FailedConstructs: stats.FailedConstructs,
		HighWater:        stats.HighWater,
		Duration:         duration,
		OpsPerSecond:     float64(ops) / duration.Seconds(),
		AllocBytesPerOp:  float64(m1.TotalAlloc-m0.TotalAlloc) / float64(ops),
	}
	return report, nil
}
