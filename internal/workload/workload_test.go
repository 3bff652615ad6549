package workload

import (
	"context"
	"testing"
	"unsafe"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/slabpool/pkg/config"
	"github.com/ajitpratap0/slabpool/pkg/errors"
	"github.com/ajitpratap0/slabpool/pkg/testutil"
)

func TestEntity_StampVerify(t *testing.T) {
	var e Entity
	e.stamp(7)
	assert.True(t, e.verify(7))
	assert.False(t, e.verify(8))

	// Any torn write to the payload breaks verification.
	e.Payload[0] ^= 0xFF
	assert.False(t, e.verify(7))
}

func TestRunDemo(t *testing.T) {
	cfg := config.NewConfig("demo-test")
	cfg.Pool.Capacity = 16
	cfg.Workload.FailEvery = 5

	report, err := RunDemo(context.Background(), cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "demo", report.Workload)
	assert.Equal(t, 16, report.Capacity)
	assert.Equal(t, 16*int(unsafe.Sizeof(Entity{})), report.PhysicalSize)
	assert.Equal(t, 1, report.Goroutines)

	// Filling 16 slots with a failure every 5th attempt costs exactly 3
	// injected failures, and the move phase adds one more lifecycle.
	assert.Equal(t, int64(17), report.Constructed)
	assert.Equal(t, report.Constructed, report.Destroyed)
	assert.Equal(t, int64(3), report.FailedConstructs)
	assert.Equal(t, int64(1), report.Exhaustions)
	assert.Equal(t, 16, report.HighWater)
	assert.Greater(t, report.OpsPerSecond, 0.0)
}

func TestRunDemo_Concurrent(t *testing.T) {
	cfg := config.NewConfig("demo-concurrent")
	cfg.Pool.Capacity = 8
	cfg.Pool.Concurrent = true

	report, err := RunDemo(context.Background(), cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	// No move phase on the concurrent path: one lifecycle per slot.
	assert.Equal(t, int64(8), report.Constructed)
	assert.Equal(t, int64(8), report.Destroyed)
	assert.Equal(t, int64(0), report.FailedConstructs)
	assert.Equal(t, 8, report.HighWater)
}

func TestRunDemo_Cancelled(t *testing.T) {
	cfg := config.NewConfig("demo-cancelled")
	cfg.Pool.Capacity = 4

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunDemo(ctx, cfg, testutil.TestLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDemo_RejectsAlwaysFailing(t *testing.T) {
	cfg := config.NewConfig("demo-bad")
	cfg.Workload.FailEvery = 1

	_, err := RunDemo(context.Background(), cfg, testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunStress(t *testing.T) {
	cfg := config.NewConfig("stress-test")
	cfg.Pool.Capacity = 8
	cfg.Workload.Goroutines = 4
	cfg.Workload.Cycles = 50
	cfg.Workload.FailEvery = 7
	cfg.Workload.Seed = 3

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	report, err := RunStress(ctx, cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "stress", report.Workload)
	assert.Equal(t, 8, report.Capacity)
	assert.Equal(t, 4, report.Goroutines)
	assert.Equal(t, 50, report.Cycles)

	// Each worker loses one cycle per injected failure: cycles 7 through
	// 49, so 7 of its 50.
	assert.Equal(t, int64(4*43), report.Constructed)
	assert.Equal(t, report.Constructed, report.Destroyed)
	assert.Equal(t, int64(4*7), report.FailedConstructs)
	assert.Greater(t, report.HighWater, 0)
	assert.LessOrEqual(t, report.HighWater, 8)
	assert.Greater(t, report.OpsPerSecond, 0.0)
	assert.GreaterOrEqual(t, report.P99Latency, report.P50Latency)
}

func TestRunStress_Cancelled(t *testing.T) {
	cfg := config.NewConfig("stress-cancelled")
	cfg.Pool.Capacity = 4
	cfg.Workload.Goroutines = 2
	cfg.Workload.Cycles = 1000

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunStress(ctx, cfg, testutil.TestLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReport_JSON(t *testing.T) {
	report := &Report{
		Name:        "json-test",
		Workload:    "demo",
		Capacity:    32,
		Constructed: 40,
		Destroyed:   40,
	}

	out, err := report.JSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "json-test", decoded["name"])
	assert.Equal(t, "demo", decoded["workload"])
	assert.Equal(t, float64(32), decoded["capacity"])
}
