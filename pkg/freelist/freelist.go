package freelist

import (
	"math"
	"unsafe"

	"go.uber.org/zap"

	"github.com/ajitpratap0/slabpool/pkg/errors"
)

// Sentinel errors returned by pool operations. They are preallocated so the
// hot path never allocates; match them with errors.Is or with the IsExhausted,
// IsStaleHandle, and IsMoved helpers. Do not attach details to these directly,
// wrap them first.
var (
	// ErrExhausted is returned by Acquire and Construct when every slot is
	// checked out. It reports a full pool, not a fault: release or destroy
	// something and try again.
	ErrExhausted = errors.New(errors.ErrorTypeExhausted, "no free slots available")

	// ErrStaleHandle is returned when a handle fails validation: it was
	// already released, belongs to a reused slot, or was never issued by
	// this pool. The pool is left untouched.
	ErrStaleHandle = errors.New(errors.ErrorTypeStaleHandle, "handle is stale or was never issued")

	// ErrMoved is returned by every operation on a pool whose contents were
	// transferred away by Move.
	ErrMoved = errors.New(errors.ErrorTypeMoved, "pool was moved from")
)

// IsExhausted reports whether err signals a full pool.
func IsExhausted(err error) bool {
	return errors.IsType(err, errors.ErrorTypeExhausted)
}

// IsStaleHandle reports whether err signals a rejected handle.
func IsStaleHandle(err error) bool {
	return errors.IsType(err, errors.ErrorTypeStaleHandle)
}

// IsMoved reports whether err signals a moved-from pool.
func IsMoved(err error) bool {
	return errors.IsType(err, errors.ErrorTypeMoved)
}

// poolState tracks who owns the slab backing a pool. A pool is live while
// it owns or borrows its slab; Move leaves the source in stateMoved, where
// every operation fails with ErrMoved.
type poolState uint8

const (
	stateOwned poolState = iota
	stateBorrowed
	stateMoved
)

// Stats is a snapshot of pool statistics for monitoring and leak detection.
type Stats struct {
	// Capacity is the fixed number of slots in the pool
	Capacity int
	// Free is the current number of slots available for acquisition
	Free int
	// InUse is the current number of checked-out slots
	InUse int
	// HighWater is the largest InUse value observed so far
	HighWater int
	// Acquires is the total number of successful acquisitions
	Acquires int64
	// Releases is the total number of slots returned, including Destroy
	// and slots reclaimed after a failed Construct
	Releases int64
	// Exhaustions is the number of acquisitions rejected on a full pool
	Exhaustions int64
	// FailedConstructs is the number of initializers that returned an error
	FailedConstructs int64
}

// poolStats holds the mutable counters behind Stats.
type poolStats struct {
	acquires         int64
	releases         int64
	exhaustions      int64
	failedConstructs int64
	highWater        int
}

// Option configures a pool at construction time.
type Option[T any] func(*Pool[T])

// WithFinalizer sets a finalizer that Destroy runs on the slot value before
// the slot is zeroed and returned to the free stack. Release never runs it.
//
// Example:
//
//	pool, err := freelist.New[Conn](64,
//	    freelist.WithFinalizer(func(c *Conn) { c.Close() }),
//	)
func WithFinalizer[T any](fin func(*T)) Option[T] {
	return func(p *Pool[T]) {
		p.fin = fin
	}
}

// WithLogger attaches a logger that traces acquisitions, releases, and
// rejected operations at debug and warn level. With no logger the trace
// paths cost a single nil check.
func WithLogger[T any](log *zap.Logger) Option[T] {
	return func(p *Pool[T]) {
		p.log = log
	}
}

// WithName labels the pool for logging and metrics.
func WithName[T any](name string) Option[T] {
	return func(p *Pool[T]) {
		p.name = name
	}
}

// Pool is a fixed-capacity object pool for values of type T. It preallocates
// a contiguous slab of capacity slots up front and hands slots out and back
// through a free-slot stack, so acquiring and releasing are O(1) and steady
// state performs no allocation at all. When every slot is checked out,
// Acquire fails with ErrExhausted instead of growing; the capacity chosen at
// construction is a hard bound.
//
// This is the inverse of sync.Pool: sync.Pool trades bounded memory for
// convenience by allocating on miss and discarding on GC, while Pool trades
// convenience for a fixed footprint, stable addresses, and an explicit
// exhaustion signal. Use it where the object population has a known bound
// and running out must be observable, not absorbed (session tables, frame
// and entity slots, protocol window entries).
//
// Slots are addressed through generation-tagged Handles rather than raw
// pointers, so double releases and use of stale handles are detected and
// rejected on every call, not just in debug builds.
//
// Pool is NOT safe for concurrent use; it performs no synchronization.
// Use ConcurrentPool when several goroutines share one pool. Pool values
// must not be copied; transfer ownership with Move instead.
type Pool[T any] struct {
	slots []T
	free  []uint32
	gens  []uint32
	state poolState

	fin  func(*T)
	log  *zap.Logger
	name string

	stats poolStats
}

// New creates a pool that owns a freshly allocated slab of capacity slots.
// All slots start free, and the first acquisition returns slot 0.
//
// Capacity must be at least 1 and fit the uint32 handle index space, and
// the slab byte size (capacity times the element size) must be
// representable; otherwise New fails with a validation or out-of-memory
// error. A failed allocation beyond that is fatal under the Go runtime and
// cannot be reported here.
//
// Example:
//
//	pool, err := freelist.New[Session](1024, freelist.WithName("sessions"))
//	if err != nil {
//	    return err
//	}
//	h, err := pool.Acquire()
func New[T any](capacity int, opts ...Option[T]) (*Pool[T], error) {
	if _, err := PhysicalSizeFor[T](capacity); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		slots: make([]T, capacity),
		free:  make([]uint32, capacity),
		gens:  make([]uint32, capacity),
		state: stateOwned,
	}
	seedFree(p.free)

	for _, opt := range opts {
		opt(p)
	}

	if p.log != nil {
		p.log.Debug("pool created",
			zap.String("pool", p.name),
			zap.Int("capacity", capacity),
			zap.Int("physical_size", p.PhysicalSize()))
	}
	return p, nil
}

// NewOn creates a pool over caller-owned storage instead of allocating its
// own slab. The pool capacity is len(storage), every slot starts free, and
// existing storage contents are left untouched until slots are constructed
// or destroyed. Values written through handles land directly in storage and
// remain visible through the caller's slice.
//
// The free parameter optionally supplies the backing buffer for the
// free-slot stack; it is adopted when non-nil and must then have capacity of
// at least len(storage). When free is nil the stack is allocated. Generation
// counters are always pool-allocated. The pool never reallocates adopted
// buffers, and the caller must not touch them while the pool is live.
//
// Example:
//
//	slab := make([]Frame, 256)
//	pool, err := freelist.NewOn(slab, nil)
func NewOn[T any](storage []T, free []uint32, opts ...Option[T]) (*Pool[T], error) {
	capacity := len(storage)
	if capacity < 1 {
		return nil, errors.New(errors.ErrorTypeValidation, "storage must hold at least one element")
	}
	if uint64(capacity) > math.MaxUint32 {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"capacity %d exceeds the handle index space", capacity)
	}
	if free != nil && cap(free) < capacity {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"free-stack buffer capacity %d is smaller than the storage capacity %d", cap(free), capacity)
	}

	if free == nil {
		free = make([]uint32, capacity)
	} else {
		free = free[:capacity]
	}
	seedFree(free)

	p := &Pool[T]{
		slots: storage,
		free:  free,
		gens:  make([]uint32, capacity),
		state: stateBorrowed,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.log != nil {
		p.log.Debug("pool created over borrowed storage",
			zap.String("pool", p.name),
			zap.Int("capacity", capacity))
	}
	return p, nil
}

// Move transfers the slab, free stack, generations, statistics, and
// configuration of src into a new pool and leaves src moved-from: every
// later operation on src fails with ErrMoved. Outstanding handles stay
// valid against the new pool, because slot indexes and generations carry
// over unchanged.
//
// Move exists so ownership of a pool can be handed across layers without
// copying the slab or leaving two structs that both claim it. It must not
// be called while other operations on src are in flight.
func Move[T any](src *Pool[T]) (*Pool[T], error) {
	if src == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "source pool is nil")
	}
	if src.state == stateMoved {
		return nil, ErrMoved
	}

	dst := &Pool[T]{
		slots: src.slots,
		free:  src.free,
		gens:  src.gens,
		state: src.state,
		fin:   src.fin,
		log:   src.log,
		name:  src.name,
		stats: src.stats,
	}

	src.slots = nil
	src.free = nil
	src.gens = nil
	src.fin = nil
	src.log = nil
	src.state = stateMoved
	src.stats = poolStats{}

	if dst.log != nil {
		dst.log.Debug("pool moved",
			zap.String("pool", dst.name),
			zap.Int("capacity", len(dst.slots)),
			zap.Int("in_use", dst.InUse()))
	}
	return dst, nil
}

// Acquire checks a slot out of the pool and returns its handle. The slot
// contents are whatever the previous occupant left behind; use Construct to
// initialize in the same step. Acquire performs a stack pop and never
// blocks: on a full pool it fails immediately with ErrExhausted, which is
// the expected signal to release something or back off.
func (p *Pool[T]) Acquire() (Handle, error) {
	if p.state == stateMoved {
		return Handle{}, ErrMoved
	}

	top := len(p.free)
	if top == 0 {
		p.stats.exhaustions++
		if p.log != nil {
			p.log.Debug("pool exhausted",
				zap.String("pool", p.name),
				zap.Int("capacity", len(p.slots)))
		}
		return Handle{}, ErrExhausted
	}

	idx := p.free[top-1]
	p.free = p.free[:top-1]
	p.gens[idx]++

	p.stats.acquires++
	if inUse := len(p.slots) - len(p.free); inUse > p.stats.highWater {
		p.stats.highWater = inUse
	}

	if p.log != nil {
		p.log.Debug("slot acquired",
			zap.String("pool", p.name),
			zap.Uint32("slot", idx),
			zap.Uint32("gen", p.gens[idx]))
	}
	return Handle{index: idx, gen: p.gens[idx]}, nil
}

// Get dereferences a live handle to a pointer into the slab. The pointer
// stays valid until the handle is released or destroyed; after that the
// slot belongs to someone else and the pointer must not be used. Stale and
// foreign handles are rejected with ErrStaleHandle.
func (p *Pool[T]) Get(h Handle) (*T, error) {
	idx, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	return &p.slots[idx], nil
}

// Construct acquires a slot and runs init on it in place. On init failure
// the slot goes straight back onto the free stack, the pool is exactly as
// before the call, and the returned error wraps the initializer's error as
// a construction failure. A nil init degenerates to Acquire.
//
// Example:
//
//	h, err := pool.Construct(func(s *Session) error {
//	    s.ID = id
//	    return s.dial(addr)
//	})
func (p *Pool[T]) Construct(init func(*T) error) (Handle, error) {
	h, err := p.Acquire()
	if err != nil {
		return Handle{}, err
	}
	if init == nil {
		return h, nil
	}

	if err := init(&p.slots[h.index]); err != nil {
		p.stats.failedConstructs++
		p.invalidate(h.index)
		p.pushFree(h.index)
		if p.log != nil {
			p.log.Warn("construct failed, slot returned",
				zap.String("pool", p.name),
				zap.Uint32("slot", h.index),
				zap.Error(err))
		}
		return Handle{}, errors.Wrap(err, errors.ErrorTypeConstruction, "initializer failed")
	}
	return h, nil
}

// Release returns a slot to the free stack without touching its contents
// and invalidates the handle. Releasing an already-released or foreign
// handle fails with ErrStaleHandle and leaves the pool untouched, so a
// double release can never corrupt the free stack.
//
// Release never runs the finalizer; it is the counterpart of Acquire.
// Slots populated through Construct should come back through Destroy.
func (p *Pool[T]) Release(h Handle) error {
	idx, err := p.lookup(h)
	if err != nil {
		return err
	}
	p.invalidate(idx)
	p.pushFree(idx)
	return nil
}

// Destroy finalizes and reclaims a constructed slot: it runs the configured
// finalizer (if any) on the value, zeroes the slot so the slab stops
// pinning whatever the value referenced, and returns the slot to the free
// stack. Like Release it rejects stale handles with ErrStaleHandle.
func (p *Pool[T]) Destroy(h Handle) error {
	idx, err := p.lookup(h)
	if err != nil {
		return err
	}

	if p.fin != nil {
		p.fin(&p.slots[idx])
	}
	var zero T
	p.slots[idx] = zero

	p.invalidate(idx)
	p.pushFree(idx)
	return nil
}

// Cap returns the fixed slot capacity. A moved-from pool reports 0.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}

// Free returns the number of slots currently available for acquisition.
func (p *Pool[T]) Free() int {
	return len(p.free)
}

// InUse returns the number of currently checked-out slots.
func (p *Pool[T]) InUse() int {
	return len(p.slots) - len(p.free)
}

// Name returns the label configured with WithName.
func (p *Pool[T]) Name() string {
	return p.name
}

// PhysicalSize returns the byte footprint of the slab: capacity times the
// element size. It excludes the free stack and generation bookkeeping. A
// moved-from pool reports 0.
func (p *Pool[T]) PhysicalSize() int {
	return len(p.slots) * int(unsafe.Sizeof(*new(T)))
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Capacity:         len(p.slots),
		Free:             len(p.free),
		InUse:            len(p.slots) - len(p.free),
		HighWater:        p.stats.highWater,
		Acquires:         p.stats.acquires,
		Releases:         p.stats.releases,
		Exhaustions:      p.stats.exhaustions,
		FailedConstructs: p.stats.failedConstructs,
	}
}

// PhysicalSizeFor returns the slab byte footprint a pool of the given
// capacity would need for elements of type T, without constructing a pool.
// Use it to size borrowed storage for NewOn. It fails with a validation
// error for non-positive or index-space-exceeding capacities and with an
// out-of-memory error when the byte size overflows int; these are exactly
// the checks New performs.
//
// Example:
//
//	n, err := freelist.PhysicalSizeFor[Frame](4096)
func PhysicalSizeFor[T any](capacity int) (int, error) {
	if capacity < 1 {
		return 0, errors.Newf(errors.ErrorTypeValidation,
			"capacity must be at least 1, got %d", capacity)
	}
	if uint64(capacity) > math.MaxUint32 {
		return 0, errors.Newf(errors.ErrorTypeValidation,
			"capacity %d exceeds the handle index space", capacity)
	}

	// Sizeof never evaluates its operand, so no T is materialized even
	// for element types too large to ever construct.
	elem := int(unsafe.Sizeof(*new(T)))
	if elem > 0 && capacity > math.MaxInt/elem {
		return 0, errors.Newf(errors.ErrorTypeOutOfMemory,
			"slab of %d elements of %d bytes each overflows int", capacity, elem)
	}
	return capacity * elem, nil
}

// lookup validates a handle and resolves it to a slot index. A handle is
// live iff its generation is odd and matches the slot's current generation.
func (p *Pool[T]) lookup(h Handle) (uint32, error) {
	if p.state == stateMoved {
		return 0, ErrMoved
	}
	if int(h.index) >= len(p.slots) || h.gen%2 == 0 || p.gens[h.index] != h.gen {
		if p.log != nil {
			p.log.Warn("stale handle rejected",
				zap.String("pool", p.name),
				zap.Uint32("slot", h.index),
				zap.Uint32("gen", h.gen))
		}
		return 0, ErrStaleHandle
	}
	return h.index, nil
}

// invalidate bumps the slot generation to even, killing every outstanding
// handle to it. The slot is not yet on the free stack afterwards.
func (p *Pool[T]) invalidate(idx uint32) {
	p.gens[idx]++
}

// pushFree returns an invalidated slot to the free stack. The append reuses
// the stack's backing array; it never reallocates because the stack can
// never exceed capacity.
func (p *Pool[T]) pushFree(idx uint32) {
	p.free = append(p.free, idx)
	p.stats.releases++
	if p.log != nil {
		p.log.Debug("slot released",
			zap.String("pool", p.name),
			zap.Uint32("slot", idx))
	}
}

// seedFree fills the free stack so that slot 0 is on top: the first
// acquisition from a fresh pool always returns slot 0, then 1, and so on.
func seedFree(free []uint32) {
	n := len(free)
	for i := range free {
		free[i] = uint32(n - 1 - i)
	}
}
