package freelist

import (
	"sync"
	"testing"
)

type payload struct {
	ID   int64
	Data [200]byte
}

// Benchmark the bare checkout path: one pop, one push, no initializer.
func BenchmarkPool_AcquireRelease(b *testing.B) {
	p, err := New[payload](1024)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		h, err := p.Acquire()
		if err != nil {
			b.Fatal(err)
		}
		if err := p.Release(h); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark the full lifecycle with in-place initialization and zeroing.
func BenchmarkPool_ConstructDestroy(b *testing.B) {
	p, err := New[payload](1024)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		h, err := p.Construct(func(v *payload) error {
			v.ID = int64(i)
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
		if err := p.Destroy(h); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark handle validation and dereference on a live handle.
func BenchmarkPool_Get(b *testing.B) {
	p, err := New[payload](16)
	if err != nil {
		b.Fatal(err)
	}
	h, err := p.Acquire()
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := p.Get(h); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark the mutex-guarded variant under parallel load.
func BenchmarkConcurrentPool_AcquireRelease(b *testing.B) {
	p, err := NewConcurrent[payload](4096)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h, err := p.Acquire()
			if err != nil {
				b.Fatal(err)
			}
			if err := p.Release(h); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// Benchmark sync.Pool on the same payload for comparison. The semantics
// differ: sync.Pool allocates on miss and has no capacity bound or
// exhaustion signal, which is exactly the trade this package refuses.
func BenchmarkSyncPool_GetPut(b *testing.B) {
	p := sync.Pool{
		New: func() any { return new(payload) },
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		v := p.Get().(*payload)
		v.ID = int64(i)
		p.Put(v)
	}
}
