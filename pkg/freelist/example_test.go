// Package freelist_test provides example usage of the fixed-capacity pools.
package freelist_test

import (
	"fmt"

	"github.com/ajitpratap0/slabpool/pkg/freelist"
)

// Frame is the pooled type used by the examples: a fixed-size value, the
// shape this pool is built for.
type Frame struct {
	Seq  int64
	Data [56]byte
}

// Example demonstrates the basic slot lifecycle: construct in place, use
// the value through its handle, destroy when done.
func Example() {
	pool, err := freelist.New[Frame](64)
	if err != nil {
		panic(err)
	}

	// Construct acquires a slot and initializes it in one step
	h, err := pool.Construct(func(f *Frame) error {
		f.Seq = 1
		return nil
	})
	if err != nil {
		panic(err)
	}

	// Get resolves the handle to a pointer into the slab
	f, _ := pool.Get(h)
	fmt.Printf("frame %d in slot %d\n", f.Seq, h.Index())

	// Destroy zeroes the slot and returns it to the free stack
	_ = pool.Destroy(h)
	fmt.Printf("free: %d of %d\n", pool.Free(), pool.Cap())

	// Output:
	// frame 1 in slot 0
	// free: 64 of 64
}

// ExampleNew shows pool construction and the capacity bound.
func ExampleNew() {
	pool, err := freelist.New[Frame](2)
	if err != nil {
		panic(err)
	}

	// The capacity is fixed: two acquisitions succeed, the third is
	// rejected without blocking or growing.
	h1, _ := pool.Acquire()
	h2, _ := pool.Acquire()
	_, err = pool.Acquire()

	fmt.Println("exhausted:", freelist.IsExhausted(err))

	// Returning a slot makes the next acquisition succeed again
	_ = pool.Release(h2)
	_, err = pool.Acquire()
	fmt.Println("after release:", err)

	_ = pool.Release(h1)

	// Output:
	// exhausted: true
	// after release: <nil>
}

// ExamplePool_Construct demonstrates that a failing initializer returns
// the slot automatically: no capacity leaks, nothing to clean up.
func ExamplePool_Construct() {
	pool, err := freelist.New[Frame](8)
	if err != nil {
		panic(err)
	}

	_, err = pool.Construct(func(f *Frame) error {
		return fmt.Errorf("upstream unavailable")
	})

	fmt.Println("construct failed:", err != nil)
	fmt.Printf("free: %d of %d\n", pool.Free(), pool.Cap())

	// Output:
	// construct failed: true
	// free: 8 of 8
}

// ExamplePool_Release shows stale handle rejection: once a slot goes back,
// every old handle to it is dead, including after the slot is reused.
func ExamplePool_Release() {
	pool, err := freelist.New[Frame](4)
	if err != nil {
		panic(err)
	}

	h, _ := pool.Acquire()
	_ = pool.Release(h)

	// The handle died with the release
	_, err = pool.Get(h)
	fmt.Println("stale:", freelist.IsStaleHandle(err))

	// A double release is rejected the same way, not absorbed
	err = pool.Release(h)
	fmt.Println("double release rejected:", freelist.IsStaleHandle(err))

	// Output:
	// stale: true
	// double release rejected: true
}

// ExampleNewOn runs a pool over caller-owned storage, for slabs that live
// inside a larger preallocated arena.
func ExampleNewOn() {
	slab := make([]Frame, 16)

	pool, err := freelist.NewOn(slab, nil)
	if err != nil {
		panic(err)
	}

	h, _ := pool.Construct(func(f *Frame) error {
		f.Seq = 42
		return nil
	})

	// The pool wrote straight into the caller's slice
	fmt.Println("slab value:", slab[h.Index()].Seq)

	// Output:
	// slab value: 42
}

// ExampleMove transfers pool ownership: the destination serves existing
// handles, the source refuses everything.
func ExampleMove() {
	pool, err := freelist.New[Frame](8)
	if err != nil {
		panic(err)
	}
	h, _ := pool.Construct(func(f *Frame) error {
		f.Seq = 7
		return nil
	})

	owner, err := freelist.Move(pool)
	if err != nil {
		panic(err)
	}

	f, _ := owner.Get(h)
	fmt.Println("via new owner:", f.Seq)

	_, err = pool.Acquire()
	fmt.Println("old owner:", freelist.IsMoved(err))

	// Output:
	// via new owner: 7
	// old owner: true
}

// ExamplePhysicalSizeFor prices a slab before allocating it.
func ExamplePhysicalSizeFor() {
	n, err := freelist.PhysicalSizeFor[Frame](256)
	if err != nil {
		panic(err)
	}
	fmt.Printf("256 frames need %d bytes\n", n)

	// Output:
	// 256 frames need 16384 bytes
}

// ExampleNewConcurrent shows the thread-safe variant; the API is the same,
// the synchronization is the type's problem.
func ExampleNewConcurrent() {
	pool, err := freelist.NewConcurrent[Frame](128)
	if err != nil {
		panic(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h, err := pool.Construct(func(f *Frame) error {
			f.Seq = 99
			return nil
		})
		if err != nil {
			return
		}
		_ = pool.Destroy(h)
	}()
	<-done

	fmt.Printf("free: %d of %d\n", pool.Free(), pool.Cap())

	// Output:
	// free: 128 of 128
}
