// Package config provides the unified configuration system for slabpool.
// It defines a single Config structure shared by the CLI and the workload
// drivers, ensuring every entry point reads the same shape.
//
// The configuration is organized into logical sections:
//   - Pool: Capacity, variant selection, slot tracing
//   - Workload: Goroutine count, cycle count, hold times, fault injection
//   - Observability: Logging and the Prometheus endpoint
//
// Example usage:
//
//	cfg := config.NewConfig("stress-run")
//	cfg.Pool.Capacity = 4096
//	cfg.Pool.Concurrent = true
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config is the single unified configuration structure for slabpool runs.
// The CLI loads it from YAML with Load; programmatic callers build it with
// NewConfig and override fields as needed.
type Config struct {
	// Name identifies the run; it labels logs and metrics
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Pool settings select and size the pool under test
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Workload settings shape the demo and stress drivers
	Workload WorkloadConfig `yaml:"workload" json:"workload"`

	// Observability settings for logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PoolConfig selects the pool variant and its dimensions.
type PoolConfig struct {
	// Capacity is the fixed number of slots; the pool never grows past it
	Capacity int `yaml:"capacity" json:"capacity"`
	// Concurrent selects the mutex-guarded variant
	Concurrent bool `yaml:"concurrent" json:"concurrent"`
	// Name labels the pool in logs and metrics; defaults to the run name
	Name string `yaml:"name" json:"name"`
	// TraceSlots attaches the logger to the pool so every acquire and
	// release is traced at debug level
	TraceSlots bool `yaml:"trace_slots" json:"trace_slots"`
}

// WorkloadConfig shapes the demo and stress drivers.
type WorkloadConfig struct {
	// Goroutines is the number of concurrent workers in the stress driver
	// (0 = one per CPU)
	Goroutines int `yaml:"goroutines" json:"goroutines"`
	// Cycles is the number of acquire/hold/release cycles per worker
	Cycles int `yaml:"cycles" json:"cycles"`
	// Hold is how long a worker keeps a slot before returning it
	Hold time.Duration `yaml:"hold" json:"hold"`
	// FailEvery injects an initializer failure on every Nth construct
	// (0 = never fail)
	FailEvery int `yaml:"fail_every" json:"fail_every"`
	// Seed makes the drivers deterministic for a given configuration
	Seed int64 `yaml:"seed" json:"seed"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Development switches to the colored console encoder
	Development bool `yaml:"development" json:"development"`
	// EnableMetrics activates the Prometheus registry and endpoint
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr is the listen address for the /metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig creates a Config with sensible defaults: a 1024-slot
// single-goroutine pool, one stress worker per CPU, and metrics enabled on
// :9102. Callers override fields as needed.
//
// Example:
//
//	cfg := config.NewConfig("demo-run")
//	cfg.Pool.Capacity = 8 // Override default
func NewConfig(name string) *Config {
	return &Config{
		Name:    name,
		Version: "1.0.0",
		Pool: PoolConfig{
			Capacity:   1024,
			Concurrent: false,
			Name:       name,
			TraceSlots: false,
		},
		Workload: WorkloadConfig{
			Goroutines: runtime.NumCPU(),
			Cycles:     10000,
			Hold:       0,
			FailEvery:  0,
			Seed:       1,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			Development:   false,
			EnableMetrics: true,
			MetricsAddr:   ":9102",
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable
// ranges. Entry points should call this after loading configuration to
// catch errors early.
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Pool.Capacity < 1 {
		return fmt.Errorf("pool.capacity must be at least 1")
	}
	if c.Workload.Goroutines < 0 {
		return fmt.Errorf("workload.goroutines cannot be negative")
	}
	if c.Workload.Cycles < 1 {
		return fmt.Errorf("workload.cycles must be at least 1")
	}
	if c.Workload.Hold < 0 {
		return fmt.Errorf("workload.hold cannot be negative")
	}
	if c.Workload.FailEvery < 0 {
		return fmt.Errorf("workload.fail_every cannot be negative")
	}
	if c.Observability.EnableMetrics && c.Observability.MetricsAddr == "" {
		return fmt.Errorf("observability.metrics_addr is required when metrics are enabled")
	}
	return nil
}

// GetGoroutines returns the stress worker count, ensuring it's at least 1
func (w *WorkloadConfig) GetGoroutines() int {
	if w.Goroutines <= 0 {
		return runtime.NumCPU()
	}
	return w.Goroutines
}

// InjectsFailures returns true if initializer fault injection is enabled
func (w *WorkloadConfig) InjectsFailures() bool {
	return w.FailEvery > 0
}

// ServesMetrics returns true if the Prometheus endpoint should be started
func (o *ObservabilityConfig) ServesMetrics() bool {
	return o.EnableMetrics && o.MetricsAddr != ""
}

// PoolName returns the pool label, falling back to the run name
func (c *Config) PoolName() string {
	if c.Pool.Name != "" {
		return c.Pool.Name
	}
	return c.Name
}
