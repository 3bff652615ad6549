// Package workload provides the demo and stress drivers that exercise
// slabpool's fixed-capacity pools end to end. The drivers are what the CLI
// runs; they double as living documentation of the intended usage patterns.
//
// # Overview
//
// The workload package provides:
//   - RunDemo: a single-goroutine walk through the whole slot lifecycle,
//     exhaustion included
//   - RunStress: many goroutines hammering a shared pool, with duplicate
//     handle detection and live Prometheus gauges
//   - Report: a structured result, logged via zap and serializable to JSON
//
// # Basic Usage
//
//	cfg := config.NewConfig("demo")
//	cfg.Pool.Capacity = 8
//
//	report, err := workload.RunDemo(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	report.Log(logger)
//
// # What the Drivers Assert
//
// Both drivers fail with an internal error if the pool ever hands the same
// slot to two holders at once, if a handle goes stale while its holder
// still owns it, or if the free count does not return to capacity after
// everything is destroyed. A clean run is evidence, a failed run is a bug.
package workload

import (
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/slabpool/pkg/freelist"
)

// Entity is the pooled value the drivers exercise: a small identity header
// plus a fixed payload, the kind of fixed-size object the pool is built
// for. The payload makes slab footprint visible in PhysicalSize and makes
// slot reuse observable in the demo.
type Entity struct {
	ID      int64
	Payload [200]byte
}

// stamp writes the identity into the entity so later reads can detect
// whether anyone else touched the slot.
func (e *Entity) stamp(id int64) {
	e.ID = id
	e.Payload[0] = byte(id)
	e.Payload[len(e.Payload)-1] = byte(id >> 8)
}

// verify reports whether the entity still carries the identity written by
// stamp.
func (e *Entity) verify(id int64) bool {
	return e.ID == id &&
		e.Payload[0] == byte(id) &&
		e.Payload[len(e.Payload)-1] == byte(id>>8)
}

// slotPool is the operation set the drivers need; both freelist.Pool and
// freelist.ConcurrentPool satisfy it, so the demo can run over either
// variant.
type slotPool[T any] interface {
	Acquire() (freelist.Handle, error)
	Get(h freelist.Handle) (*T, error)
	Construct(init func(*T) error) (freelist.Handle, error)
	Release(h freelist.Handle) error
	Destroy(h freelist.Handle) error
	Cap() int
	Free() int
	InUse() int
	PhysicalSize() int
	Stats() freelist.Stats
	Name() string
}

// Report is the structured result of a driver run.
type Report struct {
	// Name is the run name from the configuration
	Name string `json:"name"`
	// Workload identifies the driver (demo or stress)
	Workload string `json:"workload"`
	// Capacity is the pool's fixed slot count
	Capacity int `json:"capacity"`
	// PhysicalSize is the slab byte footprint
	PhysicalSize int `json:"physical_size_bytes"`
	// Goroutines is the stress worker count (1 for the demo)
	Goroutines int `json:"goroutines"`
	// Cycles is the per-worker cycle count (stress only)
	Cycles int `json:"cycles,omitempty"`
	// Constructed is the number of successfully constructed slots
	Constructed int64 `json:"constructed"`
	// Destroyed is the number of destroyed slots
	Destroyed int64 `json:"destroyed"`
	// Exhaustions is how often acquisition found the pool full
	Exhaustions int64 `json:"exhaustions"`
	// FailedConstructs is how many injected initializer failures occurred
	FailedConstructs int64 `json:"failed_constructs"`
	// HighWater is the largest in-use count the pool observed
	HighWater int `json:"high_water"`
	// Duration is the wall time of the run
	Duration time.Duration `json:"duration_ns"`
	// OpsPerSecond is completed lifecycle operations per second
	OpsPerSecond float64 `json:"ops_per_second"`
	// P50Latency is the median acquire latency (stress only)
	P50Latency time.Duration `json:"p50_latency_ns,omitempty"`
	// P99Latency is the 99th percentile acquire latency (stress only)
	P99Latency time.Duration `json:"p99_latency_ns,omitempty"`
	// AllocBytesPerOp is heap allocation per lifecycle operation, which a
	// healthy steady state keeps near zero
	AllocBytesPerOp float64 `json:"alloc_bytes_per_op"`
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Log writes the report through the logger at info level.
func (r *Report) Log(log *zap.Logger) {
	log.Info("workload finished",
		zap.String("name", r.Name),
		zap.String("workload", r.Workload),
		zap.Int("capacity", r.Capacity),
		zap.Int("physical_size", r.PhysicalSize),
		zap.Int("goroutines", r.Goroutines),
		zap.Int64("constructed", r.Constructed),
		zap.Int64("destroyed", r.Destroyed),
		zap.Int64("exhaustions", r.Exhaustions),
		zap.Int64("failed_constructs", r.FailedConstructs),
		zap.Int("high_water", r.HighWater),
		zap.Duration("duration", r.Duration),
		zap.Float64("ops_per_second", r.OpsPerSecond),
		zap.Float64("alloc_bytes_per_op", r.AllocBytesPerOp))
}
