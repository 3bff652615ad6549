package freelist

import "fmt"

// Handle identifies a slot checked out from a pool. Handles are issued by
// Acquire and Construct and accepted by Get, Release, and Destroy. They are
// small value types and are meant to be passed around by value, stored in
// other structures, and compared with ==.
//
// A handle carries the slot index together with the generation the slot had
// when the handle was issued. The pool bumps the slot generation on every
// acquire and every release, so a handle becomes stale the moment its slot is
// released: later operations with it fail instead of touching whatever lives
// in the slot now. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// Index returns the slot index this handle refers to. It is mainly useful
// for logging and for correlating handles with borrowed storage; the index
// alone says nothing about whether the handle is still live.
func (h Handle) Index() int {
	return int(h.index)
}

// Generation returns the generation the handle was issued with. Live
// handles carry odd generations.
func (h Handle) Generation() uint32 {
	return h.gen
}

// IsZero reports whether h is the zero Handle. Failed acquisitions return
// the zero Handle alongside their error.
func (h Handle) IsZero() bool {
	return h.index == 0 && h.gen == 0
}

// String implements fmt.Stringer for diagnostics.
func (h Handle) String() string {
	return fmt.Sprintf("slot %d gen %d", h.index, h.gen)
}
