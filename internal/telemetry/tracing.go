package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerProviderConfig controls how the gateway's trace provider exports
// spans. Pretty output is meant for local development only.
type TracerProviderConfig struct {
	ServiceName string
	SampleRatio float64
	Pretty      bool
}

// NewTracerProvider builds a stdout-exporting TracerProvider and installs
// it as the global provider. The gateway ships no collector integration by
// default; operators wanting OTLP export swap this exporter for one of
// their own, the sdktrace.TracerProviderOption plumbing stays the same.
func NewTracerProvider(cfg TracerProviderConfig) (*sdktrace.TracerProvider, error) {
	var opts []stdouttrace.Option
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer name shared by every span the gateway emits outside the
// validator package (which owns its own three suspension-point spans).
const tracerName = "github.com/sentinelguard/actiongate"

// SpanCredentialCheck covers the fourth suspension point: resolving a
// caller's secret to a tenant before validation even starts.
const SpanCredentialCheck = "credential_resolve"

// StartSpan starts a span named name on the global tracer, tagging it
// with tenantID when known.
func StartSpan(ctx context.Context, name, tenantID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	return ctx, span
}

// EndSpan records err on span, if any, and closes it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
