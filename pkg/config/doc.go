// Package config provides unified configuration management for slabpool.
//
// Every entry point (the CLI, the workload drivers, tests) reads the same
// Config structure, so a run is fully described by one YAML file.
//
// # Key Features
//
// - Config: Single configuration structure for all entry points
// - Structured sections: Pool, Workload, Observability
// - Environment variable substitution with ${VAR_NAME} syntax
// - Automatic defaults and validation
//
// # Usage
//
// ## Basic Configuration Loading
//
//	cfg, err := config.LoadConfig("run.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Programmatic Creation
//
//	cfg := config.NewConfig("stress-run")
//	cfg.Pool.Capacity = 4096
//	cfg.Pool.Concurrent = true
//	// cfg now has sensible defaults for everything else
//
// ## Environment Variable Substitution
//
//	# run.yaml
//	name: stress-run
//	observability:
//	  metrics_addr: ${METRICS_ADDR}
//
// # Configuration Structure
//
//	type Config struct {
//		Name    string `yaml:"name" json:"name"`
//		Version string `yaml:"version" json:"version"`
//
//		Pool          PoolConfig          `yaml:"pool" json:"pool"`
//		Workload      WorkloadConfig      `yaml:"workload" json:"workload"`
//		Observability ObservabilityConfig `yaml:"observability" json:"observability"`
//	}
//
// Each section provides structured, validated configuration:
//
// - Pool: Capacity, variant selection, slot tracing
// - Workload: Worker count, cycles, hold times, fault injection, seed
// - Observability: Log level, development encoder, Prometheus endpoint
//
// # Usage Pattern
//
// 1. Use config.LoadConfig() for YAML loading with defaults and validation
// 2. Use config.NewConfig() for programmatic creation
// 3. Environment variables are substituted automatically
// 4. Validation is performed on load
package config
