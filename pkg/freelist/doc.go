// Package freelist implements fixed-capacity object pools backed by a
// preallocated slab and a free-slot stack. A pool hands out slots for
// exactly N values of one type; acquiring and releasing are O(1) stack
// operations, steady state allocates nothing, and a full pool reports
// exhaustion instead of growing. It exists for workloads that churn through
// objects of one fixed size and cannot afford fragmentation, GC pressure,
// or silent unbounded growth.
//
// Architecture
//
// Three parallel arrays make up a pool:
//
//   - slots []T: the storage slab, contiguous and never resized
//   - free []uint32: a stack of free slot indexes
//   - gens []uint32: a generation counter per slot
//
// Acquire pops an index off the free stack; Release pushes it back. The
// generation counter is bumped on every acquire and every release, so a
// slot's generation is odd while checked out and even while free. Handles
// pair the index with the generation at acquire time, which makes stale
// handle detection a single comparison.
//
// Core Types:
//
//   - Pool[T]: single-goroutine pool, no synchronization
//   - ConcurrentPool[T]: the same pool behind one mutex
//   - Handle: generation-tagged slot reference
//   - Stats: counters for monitoring and leak detection
//
// Choosing a Variant
//
// The two variants are separate types rather than a construction flag.
// Pool states in its type that the caller guarantees single-goroutine use
// and pays zero synchronization cost; ConcurrentPool takes one mutex
// around each stack mutation and keeps initializers and finalizers outside
// the critical section.
//
// Lifecycle
//
// Slots move through a fixed cycle:
//
//	h, err := pool.Construct(func(s *Session) error { return s.init() })
//	if freelist.IsExhausted(err) {
//	    // expected under load: back off or evict
//	}
//	s, err := pool.Get(h)
//	// ... use s ...
//	err = pool.Destroy(h) // finalize, zero, return to free stack
//
// Acquire/Release are the raw counterparts that skip initialization and
// finalization. Mixing is legal: Acquire'd slots may come back through
// Release, Construct'ed slots should come back through Destroy so the
// configured finalizer runs and the slab does not pin dead references.
//
// Exhaustion
//
// Acquiring from a full pool fails immediately with ErrExhausted. The pool
// never waits and never allocates past its capacity. Exhaustion is a
// recoverable signal the caller handles, and errors.IsRecoverable reports
// it as such.
//
// Borrowed Storage
//
// NewOn builds a pool over a caller-owned slice instead of allocating a
// slab, for embedding pools into larger preallocated regions. Values
// written through handles are visible through the caller's slice.
// PhysicalSizeFor reports the byte footprint a capacity would need without
// constructing anything.
//
// Ownership Transfer
//
// Move transfers a pool's contents to a new pool and leaves the source
// moved-from; every operation on a moved-from pool fails with ErrMoved.
// Outstanding handles remain valid against the destination.
//
// Best Practices
//
// DO:
//   - Size pools from measured peak population, then treat exhaustion
//     as backpressure
//   - Pair Construct with Destroy so finalizers run and slots are zeroed
//   - Check errors.Is(err, ErrStaleHandle) failures in development; they
//     always indicate a lifetime bug on the caller's side
//   - Use WithLogger during bring-up to trace the full slot lifecycle
//
// DON'T:
//   - Copy a Pool value; hand it over with Move
//   - Hold a *T from Get past the handle's release
//   - Share a Pool across goroutines; that is what ConcurrentPool is for
//   - Call Release on slots that own resources; Destroy exists for that
package freelist
