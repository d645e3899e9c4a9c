// Package telemetry exports generation and flush metrics over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/opencode-ai/agentcore/pkg/types"
)

const (
	serviceName    = "agentcore"
	serviceVersion = "0.1.0"
)

// Generation outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Storage flush results.
const (
	FlushWritten = "written"
	FlushSkipped = "skipped"
	FlushFailed  = "failed"
)

// Setup installs an OTLP/gRPC MeterProvider as the global provider when telemetry is
// enabled. The returned shutdown flushes pending metrics; it is a no-op when disabled.
func Setup(ctx context.Context, cfg types.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Metrics records generation and flush activity. A nil *Metrics records nothing.
type Metrics struct {
	generations     metric.Int64Counter
	duration        metric.Float64Histogram
	storageFlushes  metric.Int64Counter
	rendererFlushes metric.Int64Counter
	recovered       metric.Int64Counter
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName)

	generations, err := meter.Int64Counter(
		"agentcore_generations_total",
		metric.WithDescription("Finished generations by outcome"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generations counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"agentcore_generation_duration_seconds",
		metric.WithDescription("Wall time from stream open to terminal flush"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	storageFlushes, err := meter.Int64Counter(
		"agentcore_storage_flushes_total",
		metric.WithDescription("Periodic storage flushes by result"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating storage flush counter: %w", err)
	}

	rendererFlushes, err := meter.Int64Counter(
		"agentcore_renderer_flushes_total",
		metric.WithDescription("Stream responses published to the event relay"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating renderer flush counter: %w", err)
	}

	recovered, err := meter.Int64Counter(
		"agentcore_recovered_messages_total",
		metric.WithDescription("Pending messages marked failed by crash recovery"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating recovered counter: %w", err)
	}

	return &Metrics{
		generations:     generations,
		duration:        duration,
		storageFlushes:  storageFlushes,
		rendererFlushes: rendererFlushes,
		recovered:       recovered,
	}, nil
}

// Global creates the instruments on the global MeterProvider.
func Global() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

func (m *Metrics) Generation(ctx context.Context, agentID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("outcome", outcome),
	)
	m.generations.Add(ctx, 1, opt)
	m.duration.Record(ctx, elapsed.Seconds(), opt)
}

func (m *Metrics) StorageFlush(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.storageFlushes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RendererFlush(ctx context.Context) {
	if m == nil {
		return
	}
	m.rendererFlushes.Add(ctx, 1)
}

func (m *Metrics) Recovered(ctx context.Context, agentID string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.recovered.Add(ctx, n, metric.WithAttributes(attribute.String("agent_id", agentID)))
}
