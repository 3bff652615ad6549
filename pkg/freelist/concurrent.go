package freelist

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/slabpool/pkg/errors"
)

// ConcurrentPool is the thread-safe variant of Pool: the same fixed-capacity
// slab and free-slot stack, guarded by a single mutex. The lock is held only
// for the stack and generation mutations; user code given to Construct and
// the finalizer run by Destroy execute outside the lock, so a slow
// initializer never stalls other goroutines' acquisitions.
//
// Acquire still never waits for a slot to come back: a full pool fails with
// ErrExhausted immediately. Callers that want blocking semantics can layer
// their own retry or signaling on top; the pool itself has no timeouts, no
// cancellation, and no background goroutines.
//
// The two variants are separate types rather than a construction flag.
// Single-goroutine code paths keep Pool and pay nothing for
// synchronization; shared pools use ConcurrentPool and state it in the
// type.
type ConcurrentPool[T any] struct {
	mu sync.Mutex
	p  Pool[T]
}

// NewConcurrent creates a thread-safe pool that owns a freshly allocated
// slab of capacity slots. It accepts the same options and performs the same
// validation as New.
func NewConcurrent[T any](capacity int, opts ...Option[T]) (*ConcurrentPool[T], error) {
	p, err := New[T](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &ConcurrentPool[T]{p: *p}, nil
}

// NewConcurrentOn creates a thread-safe pool over caller-owned storage,
// with the same adoption rules as NewOn.
func NewConcurrentOn[T any](storage []T, free []uint32, opts ...Option[T]) (*ConcurrentPool[T], error) {
	p, err := NewOn(storage, free, opts...)
	if err != nil {
		return nil, err
	}
	return &ConcurrentPool[T]{p: *p}, nil
}

// MoveConcurrent transfers src's contents into a new pool and leaves src
// moved-from, like Move. The transfer itself is locked, but the caller must
// ensure no operation on src is still in flight when the new pool starts
// being used; handles stay valid against the destination.
func MoveConcurrent[T any](src *ConcurrentPool[T]) (*ConcurrentPool[T], error) {
	if src == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "source pool is nil")
	}

	src.mu.Lock()
	defer src.mu.Unlock()

	inner, err := Move(&src.p)
	if err != nil {
		return nil, err
	}
	return &ConcurrentPool[T]{p: *inner}, nil
}

// Acquire checks a slot out of the pool. Safe for concurrent use; on a full
// pool it fails immediately with ErrExhausted.
func (cp *ConcurrentPool[T]) Acquire() (Handle, error) {
	cp.mu.Lock()
	h, err := cp.p.Acquire()
	cp.mu.Unlock()
	return h, err
}

// Get dereferences a live handle to a pointer into the slab. Validation
// runs under the lock; the returned pointer may be used without the lock
// because the slot belongs exclusively to the handle holder until it is
// released or destroyed.
func (cp *ConcurrentPool[T]) Get(h Handle) (*T, error) {
	cp.mu.Lock()
	ptr, err := cp.p.Get(h)
	cp.mu.Unlock()
	return ptr, err
}

// Construct acquires a slot, runs init on it outside the lock, and returns
// the slot to the free stack if init fails, exactly like Pool.Construct.
// The slot is exclusively owned between the acquire and the failure
// reclaim, so init needs no synchronization of its own for the slot value.
func (cp *ConcurrentPool[T]) Construct(init func(*T) error) (Handle, error) {
	cp.mu.Lock()
	h, err := cp.p.Acquire()
	cp.mu.Unlock()
	if err != nil {
		return Handle{}, err
	}
	if init == nil {
		return h, nil
	}

	if err := init(&cp.p.slots[h.index]); err != nil {
		cp.mu.Lock()
		cp.p.stats.failedConstructs++
		cp.p.invalidate(h.index)
		cp.p.pushFree(h.index)
		cp.mu.Unlock()
		if cp.p.log != nil {
			cp.p.log.Warn("construct failed, slot returned",
				zap.String("pool", cp.p.name),
				zap.Uint32("slot", h.index),
				zap.Error(err))
		}
		return Handle{}, errors.Wrap(err, errors.ErrorTypeConstruction, "initializer failed")
	}
	return h, nil
}

// Release returns a slot to the free stack without touching its contents.
// Double releases are rejected with ErrStaleHandle, also under concurrent
// misuse: the first release wins, every later one fails.
func (cp *ConcurrentPool[T]) Release(h Handle) error {
	cp.mu.Lock()
	err := cp.p.Release(h)
	cp.mu.Unlock()
	return err
}

// Destroy finalizes and reclaims a constructed slot. The handle is
// invalidated under the lock first, so concurrent operations on the same
// handle fail with ErrStaleHandle while the finalizer runs; the finalizer
// and the slot zeroing then execute outside the lock, and the slot joins
// the free stack afterwards.
func (cp *ConcurrentPool[T]) Destroy(h Handle) error {
	cp.mu.Lock()
	idx, err := cp.p.lookup(h)
	if err != nil {
		cp.mu.Unlock()
		return err
	}
	cp.p.invalidate(idx)
	cp.mu.Unlock()

	if cp.p.fin != nil {
		cp.p.fin(&cp.p.slots[idx])
	}
	var zero T
	cp.p.slots[idx] = zero

	cp.mu.Lock()
	cp.p.pushFree(idx)
	cp.mu.Unlock()
	return nil
}

// Cap returns the fixed slot capacity.
func (cp *ConcurrentPool[T]) Cap() int {
	cp.mu.Lock()
	n := cp.p.Cap()
	cp.mu.Unlock()
	return n
}

// Free returns the number of slots currently available for acquisition.
func (cp *ConcurrentPool[T]) Free() int {
	cp.mu.Lock()
	n := cp.p.Free()
	cp.mu.Unlock()
	return n
}

// InUse returns the number of currently checked-out slots.
func (cp *ConcurrentPool[T]) InUse() int {
	cp.mu.Lock()
	n := cp.p.InUse()
	cp.mu.Unlock()
	return n
}

// Name returns the label configured with WithName.
func (cp *ConcurrentPool[T]) Name() string {
	cp.mu.Lock()
	name := cp.p.Name()
	cp.mu.Unlock()
	return name
}

// PhysicalSize returns the byte footprint of the slab.
func (cp *ConcurrentPool[T]) PhysicalSize() int {
	cp.mu.Lock()
	n := cp.p.PhysicalSize()
	cp.mu.Unlock()
	return n
}

// Stats returns a snapshot of the pool counters.
func (cp *ConcurrentPool[T]) Stats() Stats {
	cp.mu.Lock()
	s := cp.p.Stats()
	cp.mu.Unlock()
	return s
}
