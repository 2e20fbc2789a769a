// Package observability provides tracing, resource sampling and trace-aware
// logging for spawnpool hosts.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// TracerName is the instrumentation name used for pool spans.
const TracerName = "github.com/ajitpratap0/spawnpool"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	// Writer receives exported spans; nil means stdout
	Writer         io.Writer
	PrettyPrint    bool
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// DefaultTracingConfig returns a tracing configuration for serviceName.
func DefaultTracingConfig(serviceName string) TracingConfig {
	return TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   0.1, // 10% sampling
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// NewTracerProvider builds a tracer provider exporting to config.Writer.
// The caller owns the provider and must shut it down.
func NewTracerProvider(config TracingConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	w := config.Writer
	if w == nil {
		w = os.Stdout
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if config.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if config.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(config.BatchTimeout))
	}
	if config.MaxExportBatch > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(config.MaxExportBatch))
	}
	if config.MaxQueueSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxQueueSize(config.MaxQueueSize))
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SamplingRate)),
		sdktrace.WithBatcher(exporter, batchOpts...),
	), nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// SetGlobal installs tp and the W3C propagators as the otel globals.
func SetGlobal(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes and stops tp, then syncs log. Either may be nil.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider, log *zap.Logger) error {
	var errs []error

	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer: %w", err))
		}
	}

	if log != nil {
		if err := log.Sync(); err != nil && !ignorableSyncError(err) {
			errs = append(errs, fmt.Errorf("failed to sync logger: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// ignorableSyncError reports sync failures on terminals and pipes.
// See: https://github.com/uber-go/zap/issues/328
func ignorableSyncError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "bad file descriptor") ||
		strings.Contains(s, "invalid argument") ||
		strings.Contains(s, "inappropriate ioctl") ||
		strings.Contains(s, "/dev/stdout") ||
		strings.Contains(s, "/dev/stderr")
}

// PoolTracer wraps Manager calls in spans.
type PoolTracer struct {
	manager *pool.Manager
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewPoolTracer creates a PoolTracer for m. A nil tp uses the global
// provider. Failed spawns are logged to log with their trace ids.
func NewPoolTracer(tp trace.TracerProvider, m *pool.Manager, log *zap.Logger) *PoolTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PoolTracer{
		manager: m,
		tracer:  tp.Tracer(TracerName),
		logger:  log,
	}
}

// Spawn calls Manager.Spawn inside a "pool.spawn" span.
func (pt *PoolTracer) Spawn(ctx context.Context, id string, p pool.Placement) (*pool.Instance, error) {
	ctx, span := pt.tracer.Start(ctx, "pool.spawn",
		trace.WithAttributes(attribute.String("pool.template", id)))
	defer span.End()

	inst, err := pt.manager.Spawn(id, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		WithTrace(ctx, pt.logger).Warn("traced spawn failed", zap.String("template", id), zap.Error(err))
		return nil, err
	}

	size, _ := pt.manager.Len(id)
	span.SetAttributes(
		attribute.Int64("pool.instance", int64(inst.ID())),
		attribute.Int("pool.size", size),
	)
	span.SetStatus(codes.Ok, "")
	return inst, nil
}

// Tick calls Manager.Tick inside a "pool.tick" span.
func (pt *PoolTracer) Tick(ctx context.Context, now time.Time) int {
	_, span := pt.tracer.Start(ctx, "pool.tick")
	defer span.End()

	expired := pt.manager.Tick(now)
	span.SetAttributes(
		attribute.Int("pool.expired", expired),
		attribute.Int("pool.tracked", pt.manager.TrackedTotal()),
	)
	return expired
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
