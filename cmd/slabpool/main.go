package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/slabpool/internal/workload"
	"github.com/ajitpratap0/slabpool/pkg/config"
	"github.com/ajitpratap0/slabpool/pkg/freelist"
	"github.com/ajitpratap0/slabpool/pkg/logger"
	"github.com/ajitpratap0/slabpool/pkg/metrics"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "slabpool",
		Short: "slabpool - Fixed-capacity object pool workbench",
		Long: `slabpool exercises the fixed-capacity, handle-based object pools in this
module: a demo that walks one pool through its whole slot lifecycle, and a
stress run that hammers a shared pool from many goroutines while serving
live Prometheus metrics.`,
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slabpool v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// Size command to preview the slab footprint without building a pool
	var sizeCapacity int
	sizeCmd := &cobra.Command{
		Use:   "size",
		Short: "Print the slab footprint for a capacity",
		Long: `Print the per-slot and total slab byte footprint a pool of the given
capacity would preallocate, without allocating anything. Useful when sizing
pools against a memory budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := freelist.PhysicalSizeFor[workload.Entity](1)
			if err != nil {
				return err
			}
			total, err := freelist.PhysicalSizeFor[workload.Entity](sizeCapacity)
			if err != nil {
				return err
			}
			fmt.Printf("entity size: %d bytes\n", slot)
			fmt.Printf("slab size for %d slots: %d bytes\n", sizeCapacity, total)
			return nil
		},
	}
	sizeCmd.Flags().IntVar(&sizeCapacity, "capacity", 1024, "Number of slots to size the slab for")
	root.AddCommand(sizeCmd)

	// Demo command
	var demoConfigFile, demoLogLevel string
	var demoCapacity, demoFailEvery int
	var demoConcurrent, demoTrace, demoJSON bool

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk a pool through its whole slot lifecycle",
		Long: `Run the single-goroutine demo: construct slots until the pool reports
exhaustion, verify every live handle, destroy everything, prove dead
handles stay dead, and transfer the pool to a new owner.

Example:
  slabpool demo --capacity 64 --fail-every 10 --trace-slots --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig("demo", demoConfigFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("capacity") {
				cfg.Pool.Capacity = demoCapacity
			}
			if flags.Changed("concurrent") {
				cfg.Pool.Concurrent = demoConcurrent
			}
			if flags.Changed("fail-every") {
				cfg.Workload.FailEvery = demoFailEvery
			}
			if flags.Changed("trace-slots") {
				cfg.Pool.TraceSlots = demoTrace
			}
			if flags.Changed("log-level") {
				cfg.Observability.LogLevel = demoLogLevel
			}
			return runDemo(cfg, demoJSON)
		},
	}
	demoCmd.Flags().StringVarP(&demoConfigFile, "config", "c", "", "Path to a YAML run configuration (optional)")
	demoCmd.Flags().IntVar(&demoCapacity, "capacity", 1024, "Fixed slot capacity of the pool")
	demoCmd.Flags().BoolVar(&demoConcurrent, "concurrent", false, "Use the mutex-guarded pool variant")
	demoCmd.Flags().IntVar(&demoFailEvery, "fail-every", 0, "Inject an initializer failure on every Nth construct (0 = never)")
	demoCmd.Flags().BoolVar(&demoTrace, "trace-slots", false, "Trace every acquire and release at debug level")
	demoCmd.Flags().StringVar(&demoLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	demoCmd.Flags().BoolVar(&demoJSON, "json", false, "Print the run report as JSON instead of logging it")
	root.AddCommand(demoCmd)

	// Stress command
	var stressConfigFile, stressLogLevel, stressMetricsAddr string
	var stressCapacity, stressGoroutines, stressCycles, stressFailEvery int
	var stressHold time.Duration
	var stressSeed int64
	var stressEnableMetrics, stressJSON bool

	stressCmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer a shared pool from many goroutines",
		Long: `Run the stress driver: every worker runs full construct/verify/destroy
cycles against one shared pool, treating exhaustion as backpressure. The
driver detects slot sharing and leaks, and serves live Prometheus metrics
while it runs.

Example:
  slabpool stress --capacity 256 --goroutines 32 --cycles 50000 --hold 100us`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig("stress", stressConfigFile)
			if err != nil {
				return err
			}
			cfg.Pool.Concurrent = true
			flags := cmd.Flags()
			if flags.Changed("capacity") {
				cfg.Pool.Capacity = stressCapacity
			}
			if flags.Changed("goroutines") {
				cfg.Workload.Goroutines = stressGoroutines
			}
			if flags.Changed("cycles") {
				cfg.Workload.Cycles = stressCycles
			}
			if flags.Changed("hold") {
				cfg.Workload.Hold = stressHold
			}
			if flags.Changed("fail-every") {
				cfg.Workload.FailEvery = stressFailEvery
			}
			if flags.Changed("seed") {
				cfg.Workload.Seed = stressSeed
			}
			if flags.Changed("metrics-addr") {
				cfg.Observability.MetricsAddr = stressMetricsAddr
			}
			if flags.Changed("enable-metrics") {
				cfg.Observability.EnableMetrics = stressEnableMetrics
			}
			if flags.Changed("log-level") {
				cfg.Observability.LogLevel = stressLogLevel
			}
			return runStress(cfg, stressJSON)
		},
	}
	stressCmd.Flags().StringVarP(&stressConfigFile, "config", "c", "", "Path to a YAML run configuration (optional)")
	stressCmd.Flags().IntVar(&stressCapacity, "capacity", 1024, "Fixed slot capacity of the pool")
	stressCmd.Flags().IntVar(&stressGoroutines, "goroutines", runtime.NumCPU(), "Number of concurrent workers (0 = one per CPU)")
	stressCmd.Flags().IntVar(&stressCycles, "cycles", 10000, "Lifecycle cycles per worker")
	stressCmd.Flags().DurationVar(&stressHold, "hold", 0, "Upper bound on how long a worker holds a slot (e.g. 100us, 2ms)")
	stressCmd.Flags().IntVar(&stressFailEvery, "fail-every", 0, "Inject an initializer failure on every Nth construct (0 = never)")
	stressCmd.Flags().Int64Var(&stressSeed, "seed", 1, "Seed for the per-worker hold jitter")
	stressCmd.Flags().StringVar(&stressMetricsAddr, "metrics-addr", ":9102", "Listen address for the /metrics endpoint")
	stressCmd.Flags().BoolVar(&stressEnableMetrics, "enable-metrics", true, "Serve Prometheus metrics while the run is active")
	stressCmd.Flags().StringVar(&stressLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	stressCmd.Flags().BoolVar(&stressJSON, "json", false, "Print the run report as JSON instead of logging it")
	root.AddCommand(stressCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRunConfig loads a run configuration from a YAML file, or builds the
// defaults for the named workload when no file is given.
func loadRunConfig(name, configFile string) (*config.Config, error) {
	if configFile == "" {
		return config.NewConfig(name), nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("run configuration error: %w", err)
	}
	return cfg, nil
}

// initLogging initializes the global logger from the run configuration.
func initLogging(cfg *config.Config) error {
	encoding := "json"
	if cfg.Observability.Development {
		encoding = "console"
	}
	return logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.Observability.Development,
		Encoding:    encoding,
	})
}

// runContext builds the signal-aware context carrying the run identity the
// logger annotates every line with.
func runContext(cfg *config.Config, kind string) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = context.WithValue(ctx, logger.RunIDKey, fmt.Sprintf("%s-%d", kind, time.Now().Unix()))
	ctx = context.WithValue(ctx, logger.PoolKey, cfg.PoolName())
	ctx = context.WithValue(ctx, logger.WorkloadKey, kind)
	return ctx, stop
}

// emitReport prints the report as JSON or logs it, per the --json flag.
func emitReport(report *workload.Report, asJSON bool, log *zap.Logger) error {
	if asJSON {
		out, err := report.JSON()
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}
	report.Log(log)
	return nil
}

// runDemo executes the demo workload with the given configuration.
func runDemo(cfg *config.Config, asJSON bool) error {
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := runContext(cfg, "demo")
	defer stop()
	log := logger.WithContext(ctx)

	timer := metrics.NewTimer("demo")
	report, err := workload.RunDemo(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("demo failed: %w", err)
	}
	log.Info("demo completed successfully", zap.Duration("duration", timer.Stop()))

	return emitReport(report, asJSON, log)
}

// runStress executes the stress workload, serving the Prometheus registry
// for the duration of the run when metrics are enabled.
func runStress(cfg *config.Config, asJSON bool) error {
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := runContext(cfg, "stress")
	defer stop()
	log := logger.WithContext(ctx)

	if cfg.Observability.ServesMetrics() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{
			Addr:              cfg.Observability.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("serving metrics", zap.String("addr", cfg.Observability.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	timer := metrics.NewTimer("stress")
	report, err := workload.RunStress(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("stress run failed: %w", err)
	}
	log.Info("stress run completed successfully", zap.Duration("duration", timer.Stop()))

	return emitReport(report, asJSON, log)
}
