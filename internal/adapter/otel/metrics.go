package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tenantcms"

// Metrics holds the OTLP-exported instruments for write-path events.
type Metrics struct {
	ValidationFailures metric.Int64Counter
	SeededDocuments    metric.Int64Counter
	EventsPublished    metric.Int64Counter
}

// NewMetrics creates all metric instruments from the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ValidationFailures, err = meter.Int64Counter("tenantcms.validation.failures",
		metric.WithDescription("Writes rejected by tenant consistency or slug validation"))
	if err != nil {
		return nil, err
	}

	m.SeededDocuments, err = meter.Int64Counter("tenantcms.seed.documents",
		metric.WithDescription("Documents created or updated by template seeding"))
	if err != nil {
		return nil, err
	}

	m.EventsPublished, err = meter.Int64Counter("tenantcms.events.published",
		metric.WithDescription("Domain events published to the message queue"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ValidationFailed counts a rejected write. Safe on a nil receiver.
func (m *Metrics) ValidationFailed(ctx context.Context, collection, field string) {
	if m == nil {
		return
	}
	m.ValidationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("field", field),
	))
}

// Seeded counts documents written by a seed run. Safe on a nil receiver.
func (m *Metrics) Seeded(ctx context.Context, template string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SeededDocuments.Add(ctx, int64(n), metric.WithAttributes(attribute.String("template", template)))
}

// Published counts a published event. Safe on a nil receiver.
func (m *Metrics) Published(ctx context.Context, subject string) {
	if m == nil {
		return
	}
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("subject", subject)))
}
