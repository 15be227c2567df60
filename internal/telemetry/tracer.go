// Package telemetry wires up the OpenTelemetry trace provider used by the
// backend strategies' spans.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// adapterVersion tags emitted spans with the library release they came
// from, so traces from mixed rollouts stay attributable.
const adapterVersion = "0.1.0"

// InitTracer installs a global trace provider with a pretty-printed stdout
// exporter and returns its shutdown function. Production embedders replace
// this by setting their own provider before constructing models; the
// strategies only ever go through otel.Tracer.
func InitTracer(serviceName string, logger *slog.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(adapterVersion),
			attribute.String("gen_ai.system", "sap.ai_core"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		slog.String("service", serviceName),
		slog.String("version", adapterVersion))
	return tp.Shutdown, nil
}
