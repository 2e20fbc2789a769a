package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/spawnpool/internal/sim"
	"github.com/ajitpratap0/spawnpool/pkg/clock"
	"github.com/ajitpratap0/spawnpool/pkg/config"
	"github.com/ajitpratap0/spawnpool/pkg/errors"
	"github.com/ajitpratap0/spawnpool/pkg/json"
	"github.com/ajitpratap0/spawnpool/pkg/logger"
	"github.com/ajitpratap0/spawnpool/pkg/metrics"
	"github.com/ajitpratap0/spawnpool/pkg/observability"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// Report is the JSON document printed at the end of a simulation.
type Report struct {
	RunID     string                      `json:"run_id"`
	Name      string                      `json:"name"`
	Duration  string                      `json:"duration"`
	Ticks     int64                       `json:"ticks"`
	Expired   int64                       `json:"expired"`
	Load      sim.LoadStats               `json:"load"`
	Templates []pool.TemplateStats        `json:"templates"`
	Entities  sim.FactoryStats            `json:"entities"`
	Leaked    int64                       `json:"leaked"`
	Resources observability.ResourceUsage `json:"resources"`
}

type simulateOptions struct {
	configFile  string
	duration    time.Duration
	tick        time.Duration
	spawnRate   float64
	seed        int64
	metricsAddr string
	trace       bool
	report      string
	snapshots   time.Duration
}

func newSimulateCommand() *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic spawn workload",
		Long: `Register the configured templates with a pool manager, spawn them
round-robin at a fixed rate while a driver ticks lifetimes, and print a JSON
report. Every template is cleared before the command exits.

Example:
  spawnpool simulate --config spawnpool.yaml --duration 30s --spawn-rate 200 --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadViper(opts.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			out := cmd.OutOrStdout()
			if opts.report != "" && opts.report != "-" {
				f, err := os.Create(opts.report)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ctx := context.WithValue(cmd.Context(), logger.RunIDKey, uuid.NewString())
			report, err := runSimulation(ctx, cfg, opts, logger.WithContext(ctx).Named("simulate"), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return json.MarshalToWriter(out, report, "  ")
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration YAML file")
	f.DurationVar(&opts.duration, "duration", 0, "Run length (overrides simulation.duration)")
	f.DurationVar(&opts.tick, "tick", 0, "Lifetime tick interval (overrides pool.tick_interval)")
	f.Float64Var(&opts.spawnRate, "spawn-rate", 0, "Spawns per second across all templates (overrides simulation.spawn_rate)")
	f.Int64Var(&opts.seed, "seed", 0, "Placement seed (overrides simulation.seed)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (enables metrics)")
	f.BoolVar(&opts.trace, "trace", false, "Export spawn and tick spans to stderr")
	f.StringVar(&opts.report, "report", "-", "Write the JSON report to this file instead of stdout")
	f.DurationVar(&opts.snapshots, "snapshots", 0, "Write pool stats as JSON lines to stderr at this interval")

	return cmd
}

// applyFlags overrides configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *simulateOptions) {
	flags := cmd.Flags()
	if flags.Changed("duration") {
		cfg.Simulation.Duration = config.Duration(opts.duration)
	}
	if flags.Changed("tick") {
		cfg.Pool.TickInterval = config.Duration(opts.tick)
	}
	if flags.Changed("spawn-rate") {
		cfg.Simulation.SpawnRate = opts.spawnRate
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed = opts.seed
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = opts.metricsAddr
	}
	if flags.Changed("trace") {
		cfg.Tracing.Enabled = opts.trace
	}
}

// runSimulation drives one simulation to completion. Spans and snapshots go
// to diag. The manager is always cleared before returning.
func runSimulation(ctx context.Context, cfg *config.Config, opts *simulateOptions, log *zap.Logger, diag io.Writer) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(cfg.Templates) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "simulation needs at least one template")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID, _ := ctx.Value(logger.RunIDKey).(string)
	if runID == "" {
		runID = uuid.NewString()
		ctx = context.WithValue(ctx, logger.RunIDKey, runID)
		log = log.With(zap.String("run_id", runID))
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.Metrics.Namespace, reg)
	gauges := observability.NewResourceGauges(cfg.Metrics.Namespace, reg)

	m := pool.NewManager(pool.WithLogger(log.Named("pool")), pool.WithMetrics(collector))
	defer func() { _ = m.Shutdown() }()

	factory := sim.NewFactory(log.Named("sim"))
	ids := make([]string, 0, len(cfg.Templates))
	for _, t := range cfg.Templates {
		if err := m.Warm(t.Template(factory), t.Warm); err != nil {
			return nil, err
		}
		ids = append(ids, t.ID)
	}

	var (
		spawner sim.Spawner  = sim.Direct(m)
		target  clock.Ticker = m
	)
	if cfg.Tracing.Enabled {
		tc := observability.DefaultTracingConfig(cfg.Tracing.ServiceName)
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Tracing.SampleRate
		tc.Writer = diag
		tp, err := observability.NewTracerProvider(tc)
		if err != nil {
			return nil, err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.Shutdown(sctx, tp, nil); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
		observability.SetGlobal(tp)
		pt := observability.NewPoolTracer(nil, m, log.Named("trace"))
		spawner = pt
		target = clock.TickFunc(func(now time.Time) int { return pt.Tick(ctx, now) })
	}

	var ticks, expired int64
	driver, err := clock.NewDriver(target, cfg.Pool.TickInterval.Std(),
		clock.WithLogger(log.Named("driver")),
		clock.WithOnTick(func(_ time.Time, n int) {
			ticks++
			expired += int64(n)
		}),
	)
	if err != nil {
		return nil, err
	}

	load, err := sim.NewLoad(spawner, ids, cfg.Simulation.SpawnRate, cfg.Simulation.Seed, log.Named("load"))
	if err != nil {
		return nil, err
	}

	rm, err := observability.NewResourceMonitor(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Simulation.Duration.Std())
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	log.Info("simulation started",
		zap.String("name", cfg.Name),
		zap.Strings("templates", ids),
		zap.Duration("duration", cfg.Simulation.Duration.Std()),
		zap.Float64("spawn_rate", cfg.Simulation.SpawnRate))
	start := time.Now()

	g.Go(func() error { return driver.Run(gctx) })
	g.Go(func() error { return load.Run(gctx) })
	g.Go(func() error { return gauges.Watch(gctx, rm, time.Second, log) })

	if cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("serving metrics", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if opts != nil && opts.snapshots > 0 {
		g.Go(func() error { return writeSnapshots(gctx, m, opts.snapshots, diag) })
	}

	if err := g.Wait(); err != nil && !isStop(err) {
		m.ClearAll()
		return nil, err
	}

	report := &Report{
		RunID:     runID,
		Name:      cfg.Name,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
		Load:      load.Stats(),
		Templates: m.Stats(),
		Entities:  factory.Stats(),
	}
	// The driver goroutine has exited, so the tick counters are stable.
	report.Ticks, report.Expired = ticks, expired

	if usage, err := rm.Sample(context.Background()); err == nil {
		report.Resources = usage
	} else {
		log.Warn("resource sample failed", zap.Error(err))
	}

	m.ClearAll()
	after := factory.Stats()
	report.Leaked = after.Created - after.Destroyed

	log.Info("simulation finished",
		zap.Int64("spawned", report.Load.Spawned),
		zap.Int64("failed", report.Load.Failed),
		zap.Int64("expired", report.Expired))
	return report, nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// writeSnapshots streams m.Stats() as JSON lines to w every interval.
func writeSnapshots(ctx context.Context, m *pool.Manager, interval time.Duration, w io.Writer) error {
	enc, err := json.NewStreamingEncoder(w, false)
	if err != nil {
		return err
	}
	defer enc.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := enc.Encode(snapshot{At: now.UTC(), Templates: m.Stats()}); err != nil {
				return err
			}
		}
	}
}

type snapshot struct {
	At        time.Time            `json:"at"`
	Templates []pool.TemplateStats `json:"templates"`
}

// isStop reports whether err only signals the end of the run.
func isStop(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
