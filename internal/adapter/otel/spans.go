package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tenantcms"

// StartResolveSpan starts a span for a public tenant lookup.
func StartResolveSpan(ctx context.Context, slug string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.resolve",
		trace.WithAttributes(attribute.String("tenant.slug", slug)),
	)
}

// StartDecisionSpan starts a span for an access policy evaluation.
func StartDecisionSpan(ctx context.Context, collection, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "access.decide",
		trace.WithAttributes(
			attribute.String("access.collection", collection),
			attribute.String("access.operation", operation),
		),
	)
}

// StartValidateSpan starts a span for pre-commit write validation.
func StartValidateSpan(ctx context.Context, collection, docID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "content.validate",
		trace.WithAttributes(
			attribute.String("content.collection", collection),
			attribute.String("content.id", docID),
		),
	)
}

// StartSeedSpan starts a span for applying a seed template to a tenant.
func StartSeedSpan(ctx context.Context, tenantID, template string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.seed",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("seed.template", template),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
