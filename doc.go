// Package slabpool provides fixed-capacity, handle-based object pools
// built on a preallocated slab and a LIFO free stack, for workloads that
// need hard memory ceilings and zero allocation on the hot path.
//
// A pool preallocates storage for exactly N instances of one type up
// front. Acquiring and returning a slot are O(1) stack operations, and a
// full pool rejects the next acquisition with a recoverable error instead
// of growing, blocking, or touching the heap.
//
// # Architecture
//
// slabpool is built on three principles:
//
// 1. Fixed Footprint: All slot storage is allocated at construction.
// PhysicalSize reports the exact slab bytes, and PhysicalSizeFor prices a
// capacity before anything is allocated.
//
// 2. Generation-Tagged Handles: Slots are addressed through small value
// handles carrying a slot index and a generation tag. Stale handles from
// earlier leases of the same slot are detected and rejected, never
// silently resolved.
//
// 3. Explicit Variants: Pool is single-goroutine and performs no
// synchronization; ConcurrentPool wraps the same engine behind a mutex.
// The choice is a type, visible at every call site.
//
// # Quick Start
//
// Create a pool, construct a slot in place, and return it:
//
//	import "github.com/ajitpratap0/slabpool/pkg/freelist"
//
//	pool, err := freelist.New[Session](1024)
//	if err != nil {
//	    return err
//	}
//
//	h, err := pool.Construct(func(s *Session) error {
//	    return s.Open(addr)
//	})
//	if freelist.IsExhausted(err) {
//	    // all 1024 slots are in use; shed load and retry later
//	}
//
//	s, _ := pool.Get(h)
//	s.Serve()
//
//	_ = pool.Destroy(h)
//
// # Key Packages
//
//	pkg/freelist - The pool engine: Pool, ConcurrentPool, Handle
//	pkg/errors   - Structured error handling with typed categories
//	pkg/logger   - Structured logging built on zap
//	pkg/config   - YAML run configuration with env substitution
//	pkg/metrics  - Prometheus collectors and Publish for pool snapshots
//	pkg/testutil - Test helpers shared by the package test suites
//
// # Performance
//
// The hot path is a slice pop, a generation bump, and a counter update. No
// allocation occurs after construction: the free stack returns into the
// same backing array it popped from, and handles are plain values. The
// stress driver's report includes alloc bytes per operation to make this
// observable.
//
// # Workbench
//
// The slabpool binary exercises the pools end to end:
//
//	slabpool demo --capacity 64 --fail-every 10
//	slabpool stress --goroutines 32 --cycles 50000 --hold 100us
//	slabpool size --capacity 4096
//
// The stress run serves live Prometheus metrics on the configured address
// while workers hammer the pool.
package slabpool
