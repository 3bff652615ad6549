package freelist_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/slabpool/pkg/freelist"
	"github.com/ajitpratap0/slabpool/pkg/testutil"
)

func TestPool_TracedLifecycle(t *testing.T) {
	// A fully traced pool: every acquire, release, exhaustion, and stale
	// rejection goes through the logging paths.
	pool, err := freelist.New[Frame](4,
		freelist.WithName[Frame]("traced"),
		freelist.WithLogger[Frame](testutil.TestLogger(t)),
	)
	require.NoError(t, err)
	assert.Equal(t, "traced", pool.Name())

	handles := testutil.AcquireAll(t, pool)
	assert.Len(t, handles, pool.Cap())
	assert.Equal(t, 0, pool.Free())

	_, err = pool.Acquire()
	assert.True(t, freelist.IsExhausted(err))

	testutil.ReleaseAll(t, pool, handles)
	assert.Equal(t, pool.Cap(), pool.Free())

	// Every handle from the drained pool is stale now.
	for _, h := range handles {
		_, err := pool.Get(h)
		assert.True(t, freelist.IsStaleHandle(err))
	}
}

func TestPool_ChurnPerformance(t *testing.T) {
	// No logger here: a traced pool allocates for the log lines, and this
	// test pins down that plain churn does not touch the heap.
	pool, err := freelist.New[Frame](64)
	require.NoError(t, err)

	// Floors and ceilings are orders of magnitude away from what the pool
	// actually does, so this only fails on a real regression.
	testutil.NewPerformanceTest(t, "acquire-release-churn").
		WithThroughputFloor(10_000).
		WithAvgLatencyCeiling(time.Millisecond).
		WithAllocPerOpCeiling(8).
		Run(func() int64 {
			const cycles = 100_000
			for i := 0; i < cycles; i++ {
				h, err := pool.Acquire()
				if err != nil {
					t.Fatalf("acquire %d failed: %v", i, err)
				}
				if err := pool.Release(h); err != nil {
					t.Fatalf("release %d failed: %v", i, err)
				}
			}
			return 2 * cycles
		})
}

func TestConcurrentPool_DelayedReturn(t *testing.T) {
	pool, err := freelist.NewConcurrent[Frame](2,
		freelist.WithLogger[Frame](testutil.TestLogger(t)),
	)
	require.NoError(t, err)

	h, err := pool.Construct(func(f *Frame) error {
		f.Seq = 5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, pool.InUse())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = pool.Destroy(h)
	}()

	testutil.AssertEventually(t, func() bool {
		return pool.Free() == pool.Cap()
	}, 2*time.Second, "destroyed slot should return to the free stack")
}
