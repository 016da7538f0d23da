package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys in the janitor.* namespace.
const (
	AttrAction    = "janitor.action"
	AttrCategory  = "janitor.category"
	AttrRunID     = "janitor.run_id"
	AttrRequestID = "janitor.request_id"
	AttrStatus    = "janitor.status"
	AttrBatchSize = "janitor.batch_size"
	AttrDeleted   = "janitor.deleted"
	AttrHasMore   = "janitor.has_more"
	AttrEstimate  = "janitor.estimate"
)

// SetRunAttributes tags a span with the category and run it acts on.
// An empty runID is omitted.
func SetRunAttributes(span trace.Span, category, runID string) {
	attrs := []attribute.KeyValue{attribute.String(AttrCategory, category)}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	span.SetAttributes(attrs...)
}

// SetTickAttributes records the result of one batch.
func SetTickAttributes(span trace.Span, batchSize, deleted int, hasMore bool, status string) {
	span.SetAttributes(
		attribute.Int(AttrBatchSize, batchSize),
		attribute.Int(AttrDeleted, deleted),
		attribute.Bool(AttrHasMore, hasMore),
		attribute.String(AttrStatus, status),
	)
}
