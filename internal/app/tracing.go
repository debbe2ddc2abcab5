package app

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Observers returns the external observers enabled by cfg together with a
// shutdown function.
func Observers(ctx context.Context, cfg config.TracingConfig) ([]callback.Observer, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}

	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	)
	obs := callback.NewTracingObserver(func(o *callback.TracingOptions) {
		o.TracerProvider = tp
	})
	return []callback.Observer{obs}, tp.Shutdown, nil
}
