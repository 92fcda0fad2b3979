package observability

import (
	"context"
	"fmt"

	"council/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// stageDurations records per-stage wall-clock latency, keyed by stage name
// (stage1/stage2/stage3), so operators can see fan-out cost independent of
// the provider-level token metrics captured in internal/llm.
var stageDurations otelmetric.Float64Histogram

// InitOTel configures the tracer used to follow one council request across
// the three stages. Returns a shutdown func; ok to call with a zero ObsConfig
// in tests and local runs (tracing becomes a no-op provider in that case).
func InitOTel(ctx context.Context, obs config.ObsConfig) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", firstNonEmpty(obs.ServiceName, "council")),
			attribute.String("service.version", obs.ServiceVersion),
			attribute.String("deployment.environment", obs.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("init resource: %w", err)
	}

	var tp *sdktrace.TracerProvider
	if obs.OTLP == "" {
		// No collector configured: keep a local-only provider so spans still
		// nest correctly, they simply aren't exported anywhere.
		tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	} else {
		trExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(obs.OTLP), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("init trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(trExp),
			sdktrace.WithResource(res),
		)
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var mp *sdkmetric.MeterProvider
	if obs.OTLP == "" {
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	} else {
		mExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(obs.OTLP), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("init metric exporter: %w", err)
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mExp)),
		)
	}
	otel.SetMeterProvider(mp)

	if err := host.Start(host.WithMeterProvider(mp)); err != nil {
		return nil, fmt.Errorf("start host instrumentation: %w", err)
	}

	m := otel.Meter("council/orchestrator")
	if h, err := m.Float64Histogram("council.stage.duration_ms", otelmetric.WithDescription("Stage wall-clock duration in milliseconds")); err == nil {
		stageDurations = h
	}

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}
	return shutdown, nil
}

// RecordStageDuration emits a stage latency sample. No-op until InitOTel runs.
func RecordStageDuration(ctx context.Context, stage string, ms float64) {
	if stageDurations == nil {
		return
	}
	stageDurations.Record(ctx, ms, otelmetric.WithAttributes(attribute.String("stage", stage)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

