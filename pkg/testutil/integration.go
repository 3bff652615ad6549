package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides base functionality for integration tests
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	// Create temp directory for test files
	tempDir, err := os.MkdirTemp("", "slabpool-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	// Clean up temp directory
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}

	duration := time.Since(s.startTime)
	s.T().Logf("Integration test suite completed in %v", duration)
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile creates a temporary file with content
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	err := os.WriteFile(path, content, 0644)
	require.NoError(s.T(), err)
	return path
}

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// WriteConfigFile writes a YAML run configuration into dir and returns its
// path, for tests that exercise config loading end to end.
func WriteConfigFile(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// PerformanceTest checks a pool workload against throughput, latency, and
// allocation thresholds. Thresholds are optional; with none set, Run only
// reports what it measured.
//
// Example:
//
//	testutil.NewPerformanceTest(t, "churn").
//	    WithThroughputFloor(100_000).
//	    WithAllocPerOpCeiling(1).
//	    Run(func() int64 { ... return ops })
type PerformanceTest struct {
	t    *testing.T
	name string

	minThroughput float64       // ops/sec, 0 disables
	maxAvgLatency time.Duration // 0 disables
	maxAllocPerOp float64       // bytes/op, 0 disables
}

// NewPerformanceTest creates a performance check with no thresholds set.
func NewPerformanceTest(t *testing.T, name string) *PerformanceTest {
	return &PerformanceTest{
		t:    t,
		name: name,
	}
}

// WithThroughputFloor requires at least opsPerSec operations per second.
func (p *PerformanceTest) WithThroughputFloor(opsPerSec float64) *PerformanceTest {
	p.minThroughput = opsPerSec
	return p
}

// WithAvgLatencyCeiling requires the mean per-operation latency to stay at
// or below max.
func (p *PerformanceTest) WithAvgLatencyCeiling(max time.Duration) *PerformanceTest {
	p.maxAvgLatency = max
	return p
}

// WithAllocPerOpCeiling requires heap growth per operation to stay at or
// below maxBytes. Steady-state pool churn should sit at zero; the ceiling
// leaves headroom for harness noise.
func (p *PerformanceTest) WithAllocPerOpCeiling(maxBytes float64) *PerformanceTest {
	p.maxAllocPerOp = maxBytes
	return p
}

// Run times fn, measures heap growth around it, logs the results, and fails
// the test if a configured threshold is missed. fn returns the number of
// operations it completed.
func (p *PerformanceTest) Run(fn func() int64) {
	p.t.Helper()

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	start := time.Now()

	ops := fn()

	duration := time.Since(start)
	runtime.ReadMemStats(&after)

	if ops <= 0 || duration <= 0 {
		p.t.Fatalf("performance run %q completed no measurable work", p.name)
	}

	throughput := float64(ops) / duration.Seconds()
	avgLatency := duration / time.Duration(ops)
	allocated := int64(after.TotalAlloc - before.TotalAlloc)
	allocPerOp := float64(allocated) / float64(ops)

	p.t.Logf("performance %s: %d ops in %v", p.name, ops, duration)
	p.t.Logf("  throughput: %.0f ops/sec", throughput)
	p.t.Logf("  avg latency: %v", avgLatency)
	p.t.Logf("  alloc: %.2f B/op (%s total)", allocPerOp, formatBytes(allocated))

	if p.minThroughput > 0 && throughput < p.minThroughput {
		p.t.Errorf("throughput %.0f ops/sec below floor %.0f ops/sec",
			throughput, p.minThroughput)
	}
	if p.maxAvgLatency > 0 && avgLatency > p.maxAvgLatency {
		p.t.Errorf("avg latency %v above ceiling %v", avgLatency, p.maxAvgLatency)
	}
	if p.maxAllocPerOp > 0 && allocPerOp > p.maxAllocPerOp {
		p.t.Errorf("allocation %.2f B/op above ceiling %.2f B/op",
			allocPerOp, p.maxAllocPerOp)
	}
}

// formatBytes formats bytes into human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
